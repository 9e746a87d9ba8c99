package main

import (
	"context"
	"os"

	"archie-core-shopify-sync/internal/infrastructure/bootstrap"
	"archie-core-shopify-sync/internal/infrastructure/config"
	"archie-core-shopify-sync/internal/infrastructure/logging"
	"archie-core-shopify-sync/internal/workflow"

	"github.com/joho/godotenv"
	"go.temporal.io/sdk/client"
	temporalworker "go.temporal.io/sdk/worker"
)

func main() {
	envErr := godotenv.Load()
	cfg := config.Load()

	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	if envErr != nil {
		logger.Warn().Msg("⚠️  Warning: .env file not found")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("Invalid configuration")
	}
	if !cfg.TemporalEnabled() {
		logger.Fatal().Msg("TEMPORAL_HOST_PORT environment variable is required")
	}

	svc, err := bootstrap.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer svc.Close()

	c, err := client.Dial(client.Options{
		HostPort:  cfg.TemporalHostPort,
		Namespace: cfg.TemporalNamespace,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to Temporal")
	}
	defer c.Close()

	activities := workflow.NewActivities(svc.Triggers, svc.Engine, logger)
	w := workflow.NewWorker(c, cfg.TemporalTaskQueue, activities)

	logger.Info().
		Str("hostPort", cfg.TemporalHostPort).
		Str("namespace", cfg.TemporalNamespace).
		Str("taskQueue", cfg.TemporalTaskQueue).
		Msg("Starting fleet sync worker")
	if err := w.Run(temporalworker.InterruptCh()); err != nil {
		logger.Fatal().Err(err).Msg("Worker stopped with error")
	}
}
