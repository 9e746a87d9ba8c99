package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"archie-core-shopify-sync/internal/application"
	"archie-core-shopify-sync/internal/infrastructure/api"
	"archie-core-shopify-sync/internal/infrastructure/bootstrap"
	"archie-core-shopify-sync/internal/infrastructure/config"
	"archie-core-shopify-sync/internal/infrastructure/logging"
	"archie-core-shopify-sync/internal/workflow"

	"github.com/joho/godotenv"
	"go.temporal.io/sdk/client"
)

const shutdownTimeout = 15 * time.Second

func main() {
	envErr := godotenv.Load()
	cfg := config.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	if envErr != nil {
		logger.Warn().Msg("⚠️  Warning: .env file not found")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer svc.Close()

	deps := api.Dependencies{
		Connections:    svc.ConnectionService,
		Triggers:       svc.Triggers,
		Dashboard:      svc.Dashboard,
		Webhooks:       svc.Dispatcher,
		Verifier:       svc.Verifier,
		WebhookArchive: svc.WebhookArchive,
		Events:         svc.Events,
		Metrics:        svc.Metrics,
		CronSecret:     cfg.CronSecret,
		JWTSecret:      cfg.AuthJWTSecret,
		Logger:         logger,
	}

	// Cron dispatches to Temporal when a frontend is configured, otherwise fleet runs happen in process
	if cfg.TemporalEnabled() {
		temporalClient, err := client.Dial(client.Options{
			HostPort:  cfg.TemporalHostPort,
			Namespace: cfg.TemporalNamespace,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to Temporal")
		}
		defer temporalClient.Close()

		deps.FleetStarter = workflow.NewFleetStarter(temporalClient, cfg.TemporalTaskQueue, cfg.FleetConcurrency, cfg.FleetMaxPages, logger)
		logger.Info().Str("taskQueue", cfg.TemporalTaskQueue).Msg("Fleet sync dispatched to Temporal")
	}

	if cfg.AutoSyncEnabled {
		scheduler := application.NewAutoSyncScheduler(svc.Triggers, cfg.AutoSyncInterval, logger)
		go scheduler.Run(ctx)
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Graceful shutdown failed")
		}
	}()

	logger.Info().Str("port", cfg.Port).Msg("Starting API server")
	logger.Info().Msg("Swagger documentation available at http://localhost:" + cfg.Port + "/swagger/index.html")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("Failed to start server")
	}
	logger.Info().Msg("API server stopped")
}
