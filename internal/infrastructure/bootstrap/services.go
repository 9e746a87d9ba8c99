package bootstrap

import (
	"context"
	"fmt"
	"time"

	"archie-core-shopify-sync/internal/application"
	"archie-core-shopify-sync/internal/application/webhook_handlers"
	"archie-core-shopify-sync/internal/domain"
	"archie-core-shopify-sync/internal/infrastructure/config"
	"archie-core-shopify-sync/internal/infrastructure/encryption"
	"archie-core-shopify-sync/internal/infrastructure/lock"
	"archie-core-shopify-sync/internal/infrastructure/metrics"
	"archie-core-shopify-sync/internal/infrastructure/pubsub"
	"archie-core-shopify-sync/internal/infrastructure/repository"
	"archie-core-shopify-sync/internal/infrastructure/secrets"
	shopifyinfra "archie-core-shopify-sync/internal/infrastructure/shopify"
	"archie-core-shopify-sync/internal/ports"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gorm.io/gorm"
)

const connectTimeout = 10 * time.Second

// Services is the wired object graph shared by the API server and the worker
type Services struct {
	DB          *gorm.DB
	Connections ports.ConnectionRepository
	SyncLogs    ports.SyncLogRepository
	Orders      ports.OrderRepository
	Products    ports.ProductRepository
	// WebhookArchive is nil when MONGODB_URI is not set
	WebhookArchive ports.WebhookEventRepository

	Engine            *application.SyncEngine
	Triggers          *application.TriggerService
	ConnectionService *application.ConnectionService
	Dashboard         *application.DashboardService
	Dispatcher        *application.WebhookDispatcher
	Verifier          *shopifyinfra.WebhookVerifier

	Events  *pubsub.SyncPubSub
	Metrics *metrics.Recorder

	closers []func()
}

// New connects every configured backing service and wires the application layer
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Services, error) {
	s := &Services{}
	ok := false
	defer func() {
		if !ok {
			s.Close()
		}
	}()

	key, err := encryptionKey(ctx, cfg)
	if err != nil {
		return nil, err
	}
	encryptionService, err := encryption.NewService(key)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize encryption service: %w", err)
	}

	db, err := repository.OpenDatabase(cfg.DatabaseURL, logger)
	if err != nil {
		return nil, err
	}
	s.DB = db
	s.closers = append(s.closers, func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	if cfg.DBAutoMigrate {
		if err := repository.AutoMigrate(db); err != nil {
			return nil, err
		}
	}

	s.Connections = repository.NewGormConnectionRepository(db)
	s.SyncLogs = repository.NewGormSyncLogRepository(db)
	s.Orders = repository.NewGormOrderRepository(db)
	s.Products = repository.NewGormProductRepository(db)

	if cfg.MongoURI != "" {
		archive, err := s.openWebhookArchive(ctx, cfg)
		if err != nil {
			return nil, err
		}
		s.WebhookArchive = archive
	} else {
		logger.Info().Msg("MONGODB_URI not set, webhook archive disabled")
	}

	locker, err := s.openLocker(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	vault := shopifyinfra.NewTokenManager(encryptionService, logger)
	client := shopifyinfra.NewClient(logger,
		shopifyinfra.WithAPIVersion(cfg.ShopifyAPIVersion),
		shopifyinfra.WithRetries(cfg.ShopifyRetries),
	)

	s.Events = pubsub.NewSyncPubSub(logger)
	s.Metrics = metrics.NewRecorder()

	s.Engine = application.NewSyncEngine(application.SyncEngineDeps{
		Connections: s.Connections,
		SyncLogs:    s.SyncLogs,
		Orders:      s.Orders,
		Products:    s.Products,
		Client:      client,
		Vault:       vault,
		Locker:      locker,
		Metrics:     s.Metrics,
		Events:      s.Events,
		LockTTL:     cfg.SyncLockTTL,
	}, logger)

	s.Triggers = application.NewTriggerService(s.Engine, s.Connections, s.SyncLogs, s.Orders, application.TriggerOptions{
		AutoSyncInterval: cfg.AutoSyncInterval,
		FleetConcurrency: cfg.FleetConcurrency,
		FleetMaxPages:    cfg.FleetMaxPages,
	}, logger)
	s.ConnectionService = application.NewConnectionService(s.Connections, client, vault, locker, logger)
	s.Dashboard = application.NewDashboardService(s.Connections, s.Orders, s.Products, logger)

	s.Dispatcher = application.NewWebhookDispatcher(logger)
	s.Dispatcher.RegisterHandler(webhook_handlers.NewOrderHandler(s.Connections, s.Orders, logger))
	s.Dispatcher.RegisterHandler(webhook_handlers.NewProductHandler(s.Connections, s.Products, logger))
	s.Dispatcher.RegisterHandler(webhook_handlers.NewCustomerRedactHandler(s.Connections, s.Orders, logger))
	s.Dispatcher.RegisterHandler(webhook_handlers.NewAppUninstalledHandler(s.ConnectionService, logger))
	s.Verifier = shopifyinfra.NewWebhookVerifier(cfg.ShopifyWebhookSecret)
	if cfg.ShopifyWebhookSecret == "" {
		logger.Warn().Msg("SHOPIFY_WEBHOOK_SECRET not set, webhook deliveries will be rejected")
	}

	ok = true
	return s, nil
}

// Close releases connections in reverse order of opening
func (s *Services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

func (s *Services) openWebhookArchive(ctx context.Context, cfg *config.Config) (ports.WebhookEventRepository, error) {
	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	s.closers = append(s.closers, func() {
		client.Disconnect(context.Background())
	})

	db := client.Database(cfg.MongoDatabase)
	if err := repository.EnsureWebhookIndexes(connectCtx, db); err != nil {
		return nil, err
	}
	return repository.NewMongoWebhookRepository(db), nil
}

// openLocker uses Redis when REDIS_URL is set, otherwise an in-process locker
func (s *Services) openLocker(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (ports.SyncLocker, error) {
	if cfg.RedisURL == "" {
		logger.Info().Msg("REDIS_URL not set, using in-process sync locks")
		return lock.NewMemoryLocker(), nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	s.closers = append(s.closers, func() {
		client.Close()
	})

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return lock.NewRedisLocker(client, ""), nil
}

// encryptionKey prefers ENCRYPTION_KEY and falls back to the SSM parameter
func encryptionKey(ctx context.Context, cfg *config.Config) (string, error) {
	if cfg.EncryptionKey != "" {
		return cfg.EncryptionKey, nil
	}
	if cfg.EncryptionKeySSMParameter == "" {
		return "", domain.NewConfigurationError("ENCRYPTION_KEY", "set ENCRYPTION_KEY or ENCRYPTION_KEY_SSM_PARAMETER")
	}

	source, err := secrets.NewSSMSource(ctx)
	if err != nil {
		return "", err
	}
	key, err := source.Get(ctx, cfg.EncryptionKeySSMParameter)
	if err != nil {
		return "", fmt.Errorf("failed to load encryption key: %w", err)
	}
	return key, nil
}
