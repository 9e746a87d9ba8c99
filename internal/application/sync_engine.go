package application

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"archie-core-shopify-sync/internal/domain"
	"archie-core-shopify-sync/internal/ports"

	"github.com/rs/zerolog"
)

const (
	defaultLockTTL     = 2 * time.Minute
	lockReleaseTimeout = 5 * time.Second
)

// SyncEngineDeps are the collaborators of the sync engine.
// Locker, Metrics and Events are optional.
type SyncEngineDeps struct {
	Connections ports.ConnectionRepository
	SyncLogs    ports.SyncLogRepository
	Orders      ports.OrderRepository
	Products    ports.ProductRepository
	Client      ports.StoreClient
	Vault       ports.CredentialVault
	Locker      ports.SyncLocker
	Metrics     ports.SyncMetrics
	Events      ports.SyncEventPublisher
	LockTTL     time.Duration
	Clock       func() time.Time
}

// SyncEngine moves one page of store records into the relational store per invocation
type SyncEngine struct {
	connections ports.ConnectionRepository
	syncLogs    ports.SyncLogRepository
	orders      ports.OrderRepository
	products    ports.ProductRepository
	client      ports.StoreClient
	vault       ports.CredentialVault
	locker      ports.SyncLocker
	metrics     ports.SyncMetrics
	events      ports.SyncEventPublisher
	lockTTL     time.Duration
	now         func() time.Time
	logger      zerolog.Logger
}

// SyncOrdersRequest starts a fresh run when Cursor and LogID are both empty, otherwise resumes LogID
type SyncOrdersRequest struct {
	OwnerID     string
	Mode        domain.SyncMode
	Cursor      string
	LogID       string
	InitiatedBy string
}

// SyncProductsRequest starts a fresh product run
type SyncProductsRequest struct {
	OwnerID     string
	Mode        domain.SyncMode
	InitiatedBy string
}

// NewSyncEngine creates a new sync engine
func NewSyncEngine(deps SyncEngineDeps, logger zerolog.Logger) *SyncEngine {
	e := &SyncEngine{
		connections: deps.Connections,
		syncLogs:    deps.SyncLogs,
		orders:      deps.Orders,
		products:    deps.Products,
		client:      deps.Client,
		vault:       deps.Vault,
		locker:      deps.Locker,
		metrics:     deps.Metrics,
		events:      deps.Events,
		lockTTL:     deps.LockTTL,
		now:         deps.Clock,
		logger:      logger,
	}
	if e.metrics == nil {
		e.metrics = noopMetrics{}
	}
	if e.events == nil {
		e.events = noopPublisher{}
	}
	if e.lockTTL <= 0 {
		e.lockTTL = defaultLockTTL
	}
	if e.now == nil {
		e.now = func() time.Time { return time.Now().UTC() }
	}
	return e
}

// SyncOrdersPage fetches and persists exactly one page of orders
func (e *SyncEngine) SyncOrdersPage(ctx context.Context, req SyncOrdersRequest) (*domain.SyncPageResult, error) {
	mode := req.Mode
	if mode == "" {
		mode = domain.SyncModeManual
	}
	resume := req.Cursor != "" || req.LogID != ""
	if resume && req.LogID == "" {
		return nil, domain.NewValidationError("log_id", "a cursor must be sent together with its log id")
	}

	conn, err := e.activeConnection(ctx, req.OwnerID)
	if err != nil {
		return nil, err
	}

	release, err := e.acquire(ctx, conn.ID)
	if err != nil {
		return nil, err
	}
	defer release()
	if conn, err = e.confirmActive(ctx, conn); err != nil {
		return nil, err
	}

	started := e.now()

	var entry *domain.SyncLogEntry
	if resume {
		entry, err = e.resumableEntry(ctx, conn, req.LogID, domain.ResourceOrders)
		if err != nil {
			return nil, err
		}
		mode = entry.Mode()
	} else if err := domain.ValidateStoreEndpoint(conn.StoreEndpoint); err != nil {
		return nil, err
	}

	creds, err := e.vault.Open(conn)
	if err != nil {
		return nil, err
	}

	if entry == nil {
		entry, err = e.startRun(ctx, conn, domain.ResourceOrders, mode, req.InitiatedBy, started)
		if err != nil {
			return nil, err
		}
	}

	pageReq := ports.OrdersPageRequest{}
	if resume {
		pageReq.Cursor = req.Cursor
		if pageReq.Cursor == "" {
			pageReq.Cursor = entry.Cursor
		}
	}
	if pageReq.Cursor == "" && mode == domain.SyncModeAuto && conn.LastSyncAt != nil {
		since := conn.LastSyncAt.UTC()
		pageReq.UpdatedSince = &since
	}

	page, err := e.client.FetchOrdersPage(ctx, creds, pageReq)
	if err != nil {
		return nil, e.fetchFailed(ctx, conn, entry, err, pageReq.Cursor)
	}

	rows := make([]*domain.Order, 0, len(page.Orders))
	for _, o := range page.Orders {
		rows = append(rows, MapOrder(conn.ID, o))
	}
	if err := e.orders.UpsertOrders(ctx, rows); err != nil {
		return nil, e.persistFailed(ctx, conn, entry, "upsert orders", err)
	}

	updated, err := e.syncLogs.Advance(ctx, entry.ID, len(rows), page.NextCursor)
	if err != nil {
		return nil, e.advanceFailed(conn, entry, err)
	}

	result := &domain.SyncPageResult{
		Processed:      len(rows),
		TotalProcessed: updated.ItemsProcessed,
		NextCursor:     page.NextCursor,
		LogID:          updated.ID,
		Completed:      updated.Status == domain.SyncStatusSuccess,
	}
	e.metrics.ObservePage(domain.ResourceOrders, mode, len(rows), e.now().Sub(started))

	if result.Completed {
		// The run start, not the completion time, bounds the next incremental filter
		if err := e.connections.RecordLastSync(ctx, conn.ID, updated.StartedAt); err != nil {
			e.logger.Error().Err(err).Str("connectionId", conn.ID).Msg("Failed to record last sync")
			return nil, err
		}
		e.metrics.ObserveRunCompleted(domain.ResourceOrders, mode)
	}

	e.publish(conn, updated, len(rows), "")
	e.logger.Info().
		Str("ownerId", conn.OwnerID).
		Str("logId", updated.ID).
		Str("kind", updated.Kind).
		Int("processed", result.Processed).
		Int("totalProcessed", result.TotalProcessed).
		Bool("completed", result.Completed).
		Msg("Synced orders page")
	return result, nil
}

// SyncProducts runs one complete product sync
func (e *SyncEngine) SyncProducts(ctx context.Context, req SyncProductsRequest) (*domain.SyncPageResult, error) {
	mode := req.Mode
	if mode == "" {
		mode = domain.SyncModeManual
	}

	conn, err := e.activeConnection(ctx, req.OwnerID)
	if err != nil {
		return nil, err
	}

	release, err := e.acquire(ctx, conn.ID)
	if err != nil {
		return nil, err
	}
	defer release()
	if conn, err = e.confirmActive(ctx, conn); err != nil {
		return nil, err
	}

	started := e.now()
	if err := domain.ValidateStoreEndpoint(conn.StoreEndpoint); err != nil {
		return nil, err
	}
	creds, err := e.vault.Open(conn)
	if err != nil {
		return nil, err
	}

	entry, err := e.startRun(ctx, conn, domain.ResourceProducts, mode, req.InitiatedBy, started)
	if err != nil {
		return nil, err
	}

	products, err := e.client.FetchAllProducts(ctx, creds)
	if err != nil {
		return nil, e.fetchFailed(ctx, conn, entry, err, "")
	}

	rows := make([]*domain.Product, 0, len(products))
	for _, p := range products {
		rows = append(rows, MapProduct(conn.ID, p))
	}
	if err := e.products.UpsertProducts(ctx, rows); err != nil {
		return nil, e.persistFailed(ctx, conn, entry, "upsert products", err)
	}

	updated, err := e.syncLogs.Advance(ctx, entry.ID, len(rows), "")
	if err != nil {
		return nil, e.advanceFailed(conn, entry, err)
	}

	e.metrics.ObservePage(domain.ResourceProducts, mode, len(rows), e.now().Sub(started))
	e.metrics.ObserveRunCompleted(domain.ResourceProducts, mode)
	e.publish(conn, updated, len(rows), "")
	e.logger.Info().
		Str("ownerId", conn.OwnerID).
		Str("logId", updated.ID).
		Int("processed", len(rows)).
		Msg("Synced products")

	return &domain.SyncPageResult{
		Processed:      len(rows),
		TotalProcessed: updated.ItemsProcessed,
		LogID:          updated.ID,
		Completed:      true,
	}, nil
}

func (e *SyncEngine) activeConnection(ctx context.Context, ownerID string) (*domain.Connection, error) {
	if ownerID == "" {
		return nil, domain.NewValidationError("owner_id", "owner id is required")
	}
	conn, err := e.connections.GetActiveConnection(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if conn == nil {
		return nil, domain.ErrNoConnection
	}
	return conn, nil
}

// confirmActive reloads the connection under the lease. A disconnect or store change that
// committed before the lease was taken ends the invocation.
func (e *SyncEngine) confirmActive(ctx context.Context, conn *domain.Connection) (*domain.Connection, error) {
	current, err := e.connections.GetActiveConnection(ctx, conn.OwnerID)
	if err != nil {
		return nil, err
	}
	if current == nil || current.ID != conn.ID || current.StoreEndpoint != conn.StoreEndpoint {
		return nil, domain.ErrNoConnection
	}
	return current, nil
}

// acquire takes the connection lease, returning a release func that never fails the caller
func (e *SyncEngine) acquire(ctx context.Context, connectionID string) (func(), error) {
	if e.locker == nil {
		return func() {}, nil
	}
	unlock, ok, err := e.locker.Acquire(ctx, connectionID, e.lockTTL)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrSyncInProgress
	}
	return func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lockReleaseTimeout)
		defer cancel()
		if err := unlock(releaseCtx); err != nil {
			e.logger.Warn().Err(err).Str("connectionId", connectionID).Msg("Failed to release sync lock")
		}
	}, nil
}

func (e *SyncEngine) resumableEntry(ctx context.Context, conn *domain.Connection, logID string, resource domain.SyncResource) (*domain.SyncLogEntry, error) {
	entry, err := e.syncLogs.Get(ctx, logID)
	if err != nil {
		return nil, err
	}
	if entry == nil || entry.ConnectionID != conn.ID {
		return nil, domain.ErrSyncLogNotFound
	}
	if entry.Resource() != resource {
		return nil, domain.NewValidationError("log_id", fmt.Sprintf("log entry %s is not a %s run", logID, resource))
	}
	if entry.Status != domain.SyncStatusInProgress {
		return nil, domain.ErrSyncRunClosed
	}
	return entry, nil
}

// startRun records a fresh in-progress entry and closes older runs of the same resource
func (e *SyncEngine) startRun(ctx context.Context, conn *domain.Connection, resource domain.SyncResource, mode domain.SyncMode, initiatedBy string, started time.Time) (*domain.SyncLogEntry, error) {
	if initiatedBy == "" {
		initiatedBy = conn.OwnerID
	}
	entry := &domain.SyncLogEntry{
		ConnectionID: conn.ID,
		Kind:         domain.SyncKind(resource, mode),
		Status:       domain.SyncStatusInProgress,
		StartedAt:    started,
		InitiatedBy:  initiatedBy,
	}
	if err := e.syncLogs.Create(ctx, entry); err != nil {
		return nil, err
	}

	overridden, err := e.syncLogs.OverrideInProgress(ctx, conn.ID, resource, entry.ID)
	if err != nil {
		return nil, err
	}
	if overridden > 0 {
		e.logger.Info().
			Str("connectionId", conn.ID).
			Str("kind", entry.Kind).
			Int64("overridden", overridden).
			Msg("Closed stale in-progress sync runs")
	}
	return entry, nil
}

// fetchFailed closes the run only for failures that retrying cannot fix.
// A store that rejects the cursor it was sent closes the run too, so the next trigger starts fresh.
func (e *SyncEngine) fetchFailed(ctx context.Context, conn *domain.Connection, entry *domain.SyncLogEntry, err error, cursor string) error {
	resource, mode := entry.Resource(), entry.Mode()
	e.metrics.ObserveFailure(resource, mode, failureReason(err))

	status := domain.SyncStatusInProgress
	if domain.IsFatalStoreError(err) || (cursor != "" && rejectedCursor(err)) {
		status = domain.SyncStatusError
		if failErr := e.syncLogs.Fail(ctx, entry.ID, err.Error()); failErr != nil && !errors.Is(failErr, domain.ErrSyncRunClosed) {
			e.logger.Error().Err(failErr).Str("logId", entry.ID).Msg("Failed to mark sync log as failed")
		}
	}

	e.logger.Warn().
		Err(err).
		Str("ownerId", conn.OwnerID).
		Str("logId", entry.ID).
		Str("kind", entry.Kind).
		Str("status", string(status)).
		Msg("Store fetch failed")

	failed := *entry
	failed.Status = status
	e.publish(conn, &failed, 0, err.Error())
	return err
}

func (e *SyncEngine) persistFailed(ctx context.Context, conn *domain.Connection, entry *domain.SyncLogEntry, op string, err error) error {
	e.metrics.ObserveFailure(entry.Resource(), entry.Mode(), failureReason(err))
	if failErr := e.syncLogs.Fail(ctx, entry.ID, err.Error()); failErr != nil {
		e.logger.Error().Err(failErr).Str("logId", entry.ID).Msg("Failed to mark sync log as failed")
	}

	e.logger.Error().
		Err(err).
		Str("ownerId", conn.OwnerID).
		Str("logId", entry.ID).
		Msg("Failed to persist synced records")

	failed := *entry
	failed.Status = domain.SyncStatusError
	e.publish(conn, &failed, 0, err.Error())

	var persistErr *domain.PersistenceError
	if errors.As(err, &persistErr) {
		return err
	}
	return domain.NewPersistenceError(op, err)
}

// advanceFailed handles a run that was overridden or closed between fetch and bookkeeping.
// The upserted rows stay, they are idempotent.
func (e *SyncEngine) advanceFailed(conn *domain.Connection, entry *domain.SyncLogEntry, err error) error {
	e.metrics.ObserveFailure(entry.Resource(), entry.Mode(), failureReason(err))
	e.logger.Warn().
		Err(err).
		Str("ownerId", conn.OwnerID).
		Str("logId", entry.ID).
		Msg("Failed to advance sync log")
	return err
}

func (e *SyncEngine) publish(conn *domain.Connection, entry *domain.SyncLogEntry, processed int, errMsg string) {
	e.events.Publish(&domain.SyncEvent{
		OwnerID:        conn.OwnerID,
		ConnectionID:   conn.ID,
		LogID:          entry.ID,
		Kind:           entry.Kind,
		Status:         entry.Status,
		Processed:      processed,
		TotalProcessed: entry.ItemsProcessed,
		Error:          errMsg,
		At:             e.now(),
	})
}

// rejectedCursor reports a 400 or 422 answer, which Shopify gives for an unknown or expired page_info
func rejectedCursor(err error) bool {
	var upstreamErr *domain.UpstreamError
	if !errors.As(err, &upstreamErr) {
		return false
	}
	return upstreamErr.Status == http.StatusBadRequest || upstreamErr.Status == http.StatusUnprocessableEntity
}

func failureReason(err error) string {
	var (
		authErr     *domain.AuthenticationError
		rateErr     *domain.RateLimitError
		upstreamErr *domain.UpstreamError
		validErr    *domain.ValidationError
		persistErr  *domain.PersistenceError
	)
	switch {
	case errors.As(err, &authErr):
		return "authentication"
	case errors.As(err, &rateErr):
		return "rate_limited"
	case errors.As(err, &upstreamErr):
		return "upstream"
	case errors.As(err, &validErr):
		return "validation"
	case errors.As(err, &persistErr):
		return "persistence"
	case errors.Is(err, domain.ErrSyncRunClosed):
		return "run_closed"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "timeout"
	default:
		return "other"
	}
}

type noopMetrics struct{}

func (noopMetrics) ObservePage(domain.SyncResource, domain.SyncMode, int, time.Duration) {}
func (noopMetrics) ObserveFailure(domain.SyncResource, domain.SyncMode, string)         {}
func (noopMetrics) ObserveRunCompleted(domain.SyncResource, domain.SyncMode)            {}

type noopPublisher struct{}

func (noopPublisher) Publish(*domain.SyncEvent) {}
