package application

import (
	"context"
	"errors"
	"time"

	"archie-core-shopify-sync/internal/domain"

	"github.com/rs/zerolog"
)

// FleetRunner runs one fleet-wide sync
type FleetRunner interface {
	SyncFleet(ctx context.Context, req FleetSyncRequest) (*FleetSyncResult, error)
}

// AutoSyncScheduler triggers an auto-mode fleet sync every interval from inside the process.
// Deployments with an external cron leave it disabled.
type AutoSyncScheduler struct {
	fleet    FleetRunner
	interval time.Duration
	logger   zerolog.Logger
}

// NewAutoSyncScheduler creates a scheduler. A non-positive interval uses DefaultAutoSyncInterval.
func NewAutoSyncScheduler(fleet FleetRunner, interval time.Duration, logger zerolog.Logger) *AutoSyncScheduler {
	if interval <= 0 {
		interval = DefaultAutoSyncInterval
	}
	return &AutoSyncScheduler{
		fleet:    fleet,
		interval: interval,
		logger:   logger.With().Str("component", "autosync").Logger(),
	}
}

// Run blocks until ctx is done, starting a fleet sync on every tick.
// A tick that arrives while the previous run is still going is skipped.
func (s *AutoSyncScheduler) Run(ctx context.Context) {
	s.logger.Info().Dur("interval", s.interval).Msg("Auto sync loop started")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Auto sync loop stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single auto-mode fleet sync
func (s *AutoSyncScheduler) RunOnce(ctx context.Context) {
	result, err := s.fleet.SyncFleet(ctx, FleetSyncRequest{Mode: domain.SyncModeAuto, InitiatedBy: "autosync"})
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.logger.Error().Err(err).Msg("Auto sync failed")
		}
		return
	}
	s.logger.Info().
		Int("owners", result.Owners).
		Int("succeeded", result.Succeeded).
		Int("failed", result.Failed).
		Msg("Auto sync completed")
}
