package config

import (
	"strings"
	"time"

	"archie-core-shopify-sync/internal/domain"

	"github.com/spf13/viper"
)

// Config holds the service configuration read from the environment
type Config struct {
	Port          string
	AppURL        string
	DatabaseURL   string
	DBAutoMigrate bool

	MongoURI      string
	MongoDatabase string
	RedisURL      string

	EncryptionKey             string
	EncryptionKeySSMParameter string

	ShopifyAPIVersion    string
	ShopifyWebhookSecret string
	ShopifyRetries       int

	CronSecret    string
	AuthJWTSecret string

	AutoSyncEnabled  bool
	AutoSyncInterval time.Duration
	SyncLockTTL      time.Duration
	FleetConcurrency int
	FleetMaxPages    int

	TemporalHostPort  string
	TemporalNamespace string
	TemporalTaskQueue string

	LogLevel  string
	LogFormat string
}

// Load reads configuration from environment variables over built-in defaults.
// Call godotenv.Load first so a local .env file is visible here.
func Load() *Config {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("port", "8080")
	v.SetDefault("app_url", "http://localhost:8080")
	v.SetDefault("db_auto_migrate", true)
	v.SetDefault("mongodb_database", "shopify_sync")
	v.SetDefault("shopify_api_version", "2024-10")
	v.SetDefault("shopify_retries", 0)
	v.SetDefault("auto_sync_enabled", false)
	v.SetDefault("auto_sync_interval", 5*time.Minute)
	v.SetDefault("sync_lock_ttl", 2*time.Minute)
	v.SetDefault("fleet_concurrency", 4)
	v.SetDefault("fleet_max_pages", 200)
	v.SetDefault("temporal_namespace", "default")
	v.SetDefault("temporal_task_queue", "shopify-sync")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")

	return &Config{
		Port:                      v.GetString("port"),
		AppURL:                    strings.TrimRight(v.GetString("app_url"), "/"),
		DatabaseURL:               v.GetString("database_url"),
		DBAutoMigrate:             v.GetBool("db_auto_migrate"),
		MongoURI:                  v.GetString("mongodb_uri"),
		MongoDatabase:             v.GetString("mongodb_database"),
		RedisURL:                  v.GetString("redis_url"),
		EncryptionKey:             v.GetString("encryption_key"),
		EncryptionKeySSMParameter: v.GetString("encryption_key_ssm_parameter"),
		ShopifyAPIVersion:         v.GetString("shopify_api_version"),
		ShopifyWebhookSecret:      v.GetString("shopify_webhook_secret"),
		ShopifyRetries:            v.GetInt("shopify_retries"),
		CronSecret:                v.GetString("cron_secret"),
		AuthJWTSecret:             v.GetString("auth_jwt_secret"),
		AutoSyncEnabled:           v.GetBool("auto_sync_enabled"),
		AutoSyncInterval:          v.GetDuration("auto_sync_interval"),
		SyncLockTTL:               v.GetDuration("sync_lock_ttl"),
		FleetConcurrency:          v.GetInt("fleet_concurrency"),
		FleetMaxPages:             v.GetInt("fleet_max_pages"),
		TemporalHostPort:          v.GetString("temporal_host_port"),
		TemporalNamespace:         v.GetString("temporal_namespace"),
		TemporalTaskQueue:         v.GetString("temporal_task_queue"),
		LogLevel:                  v.GetString("log_level"),
		LogFormat:                 v.GetString("log_format"),
	}
}

// Validate reports the first missing or malformed required setting
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return domain.NewConfigurationError("DATABASE_URL", "database connection string is required")
	}
	if c.EncryptionKey == "" && c.EncryptionKeySSMParameter == "" {
		return domain.NewConfigurationError("ENCRYPTION_KEY", "set ENCRYPTION_KEY or ENCRYPTION_KEY_SSM_PARAMETER")
	}
	if c.AutoSyncInterval <= 0 {
		return domain.NewConfigurationError("AUTO_SYNC_INTERVAL", "must be a positive duration")
	}
	if c.SyncLockTTL <= 0 {
		return domain.NewConfigurationError("SYNC_LOCK_TTL", "must be a positive duration")
	}
	if c.FleetConcurrency < 1 {
		return domain.NewConfigurationError("FLEET_CONCURRENCY", "must be at least 1")
	}
	if c.FleetMaxPages < 1 {
		return domain.NewConfigurationError("FLEET_MAX_PAGES", "must be at least 1")
	}
	return nil
}

// TemporalEnabled reports whether fleet runs are dispatched to a Temporal cluster
func (c *Config) TemporalEnabled() bool {
	return c.TemporalHostPort != ""
}
