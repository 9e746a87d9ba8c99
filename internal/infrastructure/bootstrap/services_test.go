package bootstrap

import (
	"context"
	"testing"
	"time"

	"archie-core-shopify-sync/internal/domain"
	"archie-core-shopify-sync/internal/infrastructure/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		DatabaseURL:          "sqlite://:memory:",
		DBAutoMigrate:        true,
		EncryptionKey:        "a-long-enough-test-passphrase",
		ShopifyAPIVersion:    "2024-10",
		ShopifyWebhookSecret: "webhook-secret",
		AutoSyncInterval:     time.Minute,
		SyncLockTTL:          time.Minute,
		FleetConcurrency:     2,
		FleetMaxPages:        10,
	}
}

func TestNew_LocalServices(t *testing.T) {
	svc, err := New(context.Background(), testConfig(), zerolog.Nop())
	require.NoError(t, err)
	defer svc.Close()

	assert.NotNil(t, svc.DB)
	assert.NotNil(t, svc.Engine)
	assert.NotNil(t, svc.Triggers)
	assert.NotNil(t, svc.ConnectionService)
	assert.NotNil(t, svc.Dashboard)
	assert.NotNil(t, svc.Dispatcher)
	assert.NotNil(t, svc.Verifier)
	assert.NotNil(t, svc.Events)
	assert.NotNil(t, svc.Metrics)
	assert.Nil(t, svc.WebhookArchive)

	owners, err := svc.Triggers.ListActiveOwners(context.Background())
	require.NoError(t, err)
	assert.Empty(t, owners)
}

func TestNew_MissingEncryptionKey(t *testing.T) {
	cfg := testConfig()
	cfg.EncryptionKey = ""

	_, err := New(context.Background(), cfg, zerolog.Nop())
	var cfgErr *domain.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "ENCRYPTION_KEY", cfgErr.Key)
}

func TestNew_BadRedisURL(t *testing.T) {
	cfg := testConfig()
	cfg.RedisURL = "not a url"

	_, err := New(context.Background(), cfg, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse REDIS_URL")
}
