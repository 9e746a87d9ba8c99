package workflow

import (
	"context"
	"fmt"
	"time"

	"archie-core-shopify-sync/internal/domain"

	"github.com/rs/zerolog"
	"go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
)

const fleetExecutionTimeout = 2 * time.Hour

// FleetStarter dispatches fleet runs to Temporal without waiting for them
type FleetStarter struct {
	client      client.Client
	taskQueue   string
	concurrency int
	maxPages    int
	logger      zerolog.Logger
}

// NewFleetStarter creates a starter for the fleet workflow on taskQueue
func NewFleetStarter(c client.Client, taskQueue string, concurrency, maxPages int, logger zerolog.Logger) *FleetStarter {
	return &FleetStarter{
		client:      c,
		taskQueue:   taskQueue,
		concurrency: concurrency,
		maxPages:    maxPages,
		logger:      logger.With().Str("component", "sync.orchestrator").Logger(),
	}
}

// StartFleetSync starts a FleetSyncWorkflow run and returns its ids
func (s *FleetStarter) StartFleetSync(ctx context.Context, mode domain.SyncMode) (string, string, error) {
	options := client.StartWorkflowOptions{
		ID:                       fmt.Sprintf("fleet-sync-%s-%d", mode, time.Now().UnixNano()),
		TaskQueue:                s.taskQueue,
		WorkflowIDReusePolicy:    enums.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
		WorkflowExecutionTimeout: fleetExecutionTimeout,
	}
	input := FleetSyncInput{
		Mode:        mode,
		InitiatedBy: "cron",
		Concurrency: s.concurrency,
		MaxPages:    s.maxPages,
	}

	run, err := s.client.ExecuteWorkflow(ctx, options, FleetSyncWorkflowName, input)
	if err != nil {
		s.logger.Error().Err(err).Str("mode", string(mode)).Msg("Failed to start fleet sync workflow")
		return "", "", fmt.Errorf("failed to start fleet sync workflow: %w", err)
	}

	s.logger.Info().
		Str("workflowId", run.GetID()).
		Str("runId", run.GetRunID()).
		Str("mode", string(mode)).
		Msg("Fleet sync workflow started")
	return run.GetID(), run.GetRunID(), nil
}
