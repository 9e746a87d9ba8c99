package workflow

import (
	"errors"
	"time"

	"archie-core-shopify-sync/internal/application"
	"archie-core-shopify-sync/internal/domain"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	temporalworker "go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
)

const (
	FleetSyncWorkflowName            = "shopify.sync.fleet"
	ListActiveOwnersActivityName     = "shopify.sync.list_owners"
	PendingOrdersRunActivityName     = "shopify.sync.pending_orders_run"
	SyncOrdersPageActivityName       = "shopify.sync.orders_page"
	SyncProductsActivityName         = "shopify.sync.products"
	defaultWorkflowConcurrency       = 4
	defaultWorkflowMaxPages          = 200
	fleetActivityStartToCloseTimeout = 2 * time.Minute
)

// FleetSyncInput parameterizes one fleet run
type FleetSyncInput struct {
	Mode        domain.SyncMode `json:"mode"`
	InitiatedBy string          `json:"initiated_by"`
	Concurrency int             `json:"concurrency"`
	MaxPages    int             `json:"max_pages"`
}

// FleetSyncWorkflow syncs every active owner. Owners run in parallel batches,
// pages within one owner are serial and each page is its own activity.
func FleetSyncWorkflow(ctx workflow.Context, input FleetSyncInput) (application.FleetSyncResult, error) {
	logger := workflow.GetLogger(ctx)
	if input.Mode == "" {
		input.Mode = domain.SyncModeManual
	}
	if input.InitiatedBy == "" {
		input.InitiatedBy = "cron"
	}
	if input.Concurrency <= 0 {
		input.Concurrency = defaultWorkflowConcurrency
	}
	if input.MaxPages <= 0 {
		input.MaxPages = defaultWorkflowMaxPages
	}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: fleetActivityStartToCloseTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts:    5,
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Second,
			NonRetryableErrorTypes: []string{
				ErrTypeReconnectRequired,
				ErrTypeInvalidRequest,
				ErrTypeNoConnection,
				ErrTypeSyncRunClosed,
				ErrTypeConfiguration,
			},
		},
	})

	var owners []string
	if err := workflow.ExecuteActivity(ctx, ListActiveOwnersActivityName).Get(ctx, &owners); err != nil {
		logger.Error("list owners failed", "error", err)
		return application.FleetSyncResult{}, err
	}
	logger.Info("fleet sync started", "mode", string(input.Mode), "owners", len(owners))

	results := make([]application.OwnerSyncResult, len(owners))
	for start := 0; start < len(owners); start += input.Concurrency {
		end := start + input.Concurrency
		if end > len(owners) {
			end = len(owners)
		}

		wg := workflow.NewWaitGroup(ctx)
		for i := start; i < end; i++ {
			wg.Add(1)
			workflow.Go(ctx, func(gctx workflow.Context) {
				defer wg.Done()
				results[i] = syncOwner(gctx, owners[i], input)
			})
		}
		wg.Wait(ctx)
	}

	fleet := application.FleetSyncResult{Owners: len(owners), Results: results}
	for _, r := range results {
		if r.Error == "" {
			fleet.Succeeded++
		} else {
			fleet.Failed++
		}
	}
	logger.Info("fleet sync finished", "owners", fleet.Owners, "succeeded", fleet.Succeeded, "failed", fleet.Failed)
	return fleet, nil
}

func syncOwner(ctx workflow.Context, ownerID string, input FleetSyncInput) application.OwnerSyncResult {
	result := application.OwnerSyncResult{OwnerID: ownerID, Status: string(domain.SyncStatusSuccess)}
	fail := func(err error) application.OwnerSyncResult {
		result.Status = string(domain.SyncStatusError)
		result.Error = failureMessage(err)
		workflow.GetLogger(ctx).Warn("owner sync failed", "owner_id", ownerID, "error", err)
		return result
	}

	var pending PendingRun
	if err := workflow.ExecuteActivity(ctx, PendingOrdersRunActivityName, ownerID).Get(ctx, &pending); err != nil {
		return fail(err)
	}

	page := OrdersPageInput{
		OwnerID:     ownerID,
		Mode:        input.Mode,
		Cursor:      pending.Cursor,
		LogID:       pending.LogID,
		InitiatedBy: input.InitiatedBy,
	}
	for {
		if result.Pages >= input.MaxPages {
			return fail(application.ErrMaxPagesReached)
		}

		var out domain.SyncPageResult
		if err := workflow.ExecuteActivity(ctx, SyncOrdersPageActivityName, page).Get(ctx, &out); err != nil {
			return fail(err)
		}
		result.Pages++
		result.OrdersProcessed += out.Processed
		if out.Completed {
			break
		}
		page.Cursor = out.NextCursor
		page.LogID = out.LogID
	}

	var products domain.SyncPageResult
	if err := workflow.ExecuteActivity(ctx, SyncProductsActivityName, ProductsInput{
		OwnerID:     ownerID,
		Mode:        input.Mode,
		InitiatedBy: input.InitiatedBy,
	}).Get(ctx, &products); err != nil {
		return fail(err)
	}
	result.ProductsProcessed = products.Processed
	return result
}

// failureMessage prefers the application error message over the activity wrapper text
func failureMessage(err error) string {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Error()
	}
	return err.Error()
}

// NewWorker registers the fleet workflow and its activities on taskQueue
func NewWorker(c client.Client, taskQueue string, activities *Activities) temporalworker.Worker {
	w := temporalworker.New(c, taskQueue, temporalworker.Options{})
	Register(w, activities)
	return w
}

// Registry is the subset of worker.Worker and the test environment used for registration
type Registry interface {
	RegisterWorkflowWithOptions(w interface{}, options workflow.RegisterOptions)
	RegisterActivityWithOptions(a interface{}, options activity.RegisterOptions)
}

// Register adds the fleet workflow and activities to r
func Register(r Registry, activities *Activities) {
	r.RegisterWorkflowWithOptions(FleetSyncWorkflow, workflow.RegisterOptions{Name: FleetSyncWorkflowName})
	r.RegisterActivityWithOptions(activities.ListActiveOwners, activity.RegisterOptions{Name: ListActiveOwnersActivityName})
	r.RegisterActivityWithOptions(activities.PendingOrdersRun, activity.RegisterOptions{Name: PendingOrdersRunActivityName})
	r.RegisterActivityWithOptions(activities.SyncOrdersPage, activity.RegisterOptions{Name: SyncOrdersPageActivityName})
	r.RegisterActivityWithOptions(activities.SyncProducts, activity.RegisterOptions{Name: SyncProductsActivityName})
}
