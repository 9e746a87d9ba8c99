package workflow

import (
	"context"
	"errors"

	"archie-core-shopify-sync/internal/application"
	"archie-core-shopify-sync/internal/domain"

	"github.com/rs/zerolog"
	"go.temporal.io/sdk/temporal"
)

// Application error types surfaced to the workflow
const (
	ErrTypeReconnectRequired = "ReconnectRequired"
	ErrTypeInvalidRequest    = "InvalidRequest"
	ErrTypeNoConnection      = "NoConnection"
	ErrTypeSyncRunClosed     = "SyncRunClosed"
	ErrTypeConfiguration     = "Configuration"
	ErrTypeRateLimited       = "RateLimited"
	ErrTypeSyncInProgress    = "SyncInProgress"
)

// OwnerSource lists the owners a fleet run covers and their unfinished orders runs
type OwnerSource interface {
	ListActiveOwners(ctx context.Context) ([]string, error)
	PendingOrdersRun(ctx context.Context, ownerID string) (*domain.SyncLogEntry, error)
}

// PageSyncer runs single engine invocations
type PageSyncer interface {
	SyncOrdersPage(ctx context.Context, req application.SyncOrdersRequest) (*domain.SyncPageResult, error)
	SyncProducts(ctx context.Context, req application.SyncProductsRequest) (*domain.SyncPageResult, error)
}

// PendingRun is the resume point of an orders run left in progress. Empty when there is none.
type PendingRun struct {
	LogID  string `json:"log_id"`
	Cursor string `json:"cursor"`
}

// OrdersPageInput is one orders page invocation. The workflow echoes Cursor and LogID back page by page.
type OrdersPageInput struct {
	OwnerID     string          `json:"owner_id"`
	Mode        domain.SyncMode `json:"mode"`
	Cursor      string          `json:"cursor,omitempty"`
	LogID       string          `json:"log_id,omitempty"`
	InitiatedBy string          `json:"initiated_by"`
}

// ProductsInput is one products run
type ProductsInput struct {
	OwnerID     string          `json:"owner_id"`
	Mode        domain.SyncMode `json:"mode"`
	InitiatedBy string          `json:"initiated_by"`
}

// Activities hosts the activity implementations on top of the sync engine
type Activities struct {
	owners OwnerSource
	engine PageSyncer
	logger zerolog.Logger
}

// NewActivities creates the fleet sync activities
func NewActivities(owners OwnerSource, engine PageSyncer, logger zerolog.Logger) *Activities {
	return &Activities{
		owners: owners,
		engine: engine,
		logger: logger.With().Str("component", "sync.activities").Logger(),
	}
}

// ListActiveOwners returns every owner with an active connection
func (a *Activities) ListActiveOwners(ctx context.Context) ([]string, error) {
	owners, err := a.owners.ListActiveOwners(ctx)
	if err != nil {
		return nil, err
	}
	return owners, nil
}

// PendingOrdersRun returns where an unfinished orders run left off
func (a *Activities) PendingOrdersRun(ctx context.Context, ownerID string) (PendingRun, error) {
	entry, err := a.owners.PendingOrdersRun(ctx, ownerID)
	if err != nil {
		return PendingRun{}, activityError(err)
	}
	if entry == nil {
		return PendingRun{}, nil
	}
	return PendingRun{LogID: entry.ID, Cursor: entry.Cursor}, nil
}

// SyncOrdersPage runs one orders page
func (a *Activities) SyncOrdersPage(ctx context.Context, input OrdersPageInput) (domain.SyncPageResult, error) {
	result, err := a.engine.SyncOrdersPage(ctx, application.SyncOrdersRequest{
		OwnerID:     input.OwnerID,
		Mode:        input.Mode,
		Cursor:      input.Cursor,
		LogID:       input.LogID,
		InitiatedBy: input.InitiatedBy,
	})
	if err != nil {
		a.logger.Warn().Err(err).Str("ownerId", input.OwnerID).Str("logId", input.LogID).Msg("Orders page activity failed")
		return domain.SyncPageResult{}, activityError(err)
	}
	return *result, nil
}

// SyncProducts runs a full products sync
func (a *Activities) SyncProducts(ctx context.Context, input ProductsInput) (domain.SyncPageResult, error) {
	result, err := a.engine.SyncProducts(ctx, application.SyncProductsRequest{
		OwnerID:     input.OwnerID,
		Mode:        input.Mode,
		InitiatedBy: input.InitiatedBy,
	})
	if err != nil {
		a.logger.Warn().Err(err).Str("ownerId", input.OwnerID).Msg("Products activity failed")
		return domain.SyncPageResult{}, activityError(err)
	}
	return *result, nil
}

// activityError marks failures that a retry cannot fix as non-retryable.
// Rate limits retry after the delay the store asked for.
func activityError(err error) error {
	var (
		authErr       *domain.AuthenticationError
		validationErr *domain.ValidationError
		configErr     *domain.ConfigurationError
		rateErr       *domain.RateLimitError
	)

	switch {
	case errors.As(err, &authErr):
		return temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeReconnectRequired, err)
	case errors.As(err, &validationErr), errors.Is(err, domain.ErrSyncLogNotFound):
		return temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeInvalidRequest, err)
	case errors.As(err, &configErr):
		return temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeConfiguration, err)
	case errors.Is(err, domain.ErrNoConnection):
		return temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeNoConnection, err)
	case errors.Is(err, domain.ErrSyncRunClosed):
		return temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeSyncRunClosed, err)
	case errors.As(err, &rateErr):
		return temporal.NewApplicationErrorWithOptions(err.Error(), ErrTypeRateLimited, temporal.ApplicationErrorOptions{
			Cause:          err,
			NextRetryDelay: rateErr.RetryAfter,
		})
	case errors.Is(err, domain.ErrSyncInProgress):
		return temporal.NewApplicationErrorWithCause(err.Error(), ErrTypeSyncInProgress, err)
	default:
		return err
	}
}
