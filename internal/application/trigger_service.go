package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"archie-core-shopify-sync/internal/domain"
	"archie-core-shopify-sync/internal/ports"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultAutoSyncInterval = 5 * time.Minute
	defaultFleetConcurrency = 4
	defaultFleetMaxPages    = 200
)

// ErrMaxPagesReached stops an owner's run that keeps returning continuation cursors
var ErrMaxPagesReached = errors.New("max pages per owner reached")

// TriggerOptions tunes fleet behavior and status reporting
type TriggerOptions struct {
	AutoSyncInterval time.Duration
	FleetConcurrency int
	FleetMaxPages    int
}

// FleetSyncRequest starts a sync for every active owner
type FleetSyncRequest struct {
	Mode        domain.SyncMode
	InitiatedBy string
}

// OwnerSyncResult is one owner's fleet outcome
type OwnerSyncResult struct {
	OwnerID           string `json:"owner_id"`
	OrdersProcessed   int    `json:"orders_processed"`
	ProductsProcessed int    `json:"products_processed"`
	Pages             int    `json:"pages"`
	Status            string `json:"status"`
	Error             string `json:"error,omitempty"`
}

// FleetSyncResult aggregates per-owner results
type FleetSyncResult struct {
	Owners    int               `json:"owners"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
	Results   []OwnerSyncResult `json:"results"`
}

// TriggerService is the entry point for manual, scheduled and fleet-wide syncs
type TriggerService struct {
	engine      *SyncEngine
	connections ports.ConnectionRepository
	syncLogs    ports.SyncLogRepository
	orders      ports.OrderRepository
	opts        TriggerOptions
	logger      zerolog.Logger
}

// NewTriggerService creates a new trigger service
func NewTriggerService(
	engine *SyncEngine,
	connections ports.ConnectionRepository,
	syncLogs ports.SyncLogRepository,
	orders ports.OrderRepository,
	opts TriggerOptions,
	logger zerolog.Logger,
) *TriggerService {
	if opts.AutoSyncInterval <= 0 {
		opts.AutoSyncInterval = DefaultAutoSyncInterval
	}
	if opts.FleetConcurrency <= 0 {
		opts.FleetConcurrency = defaultFleetConcurrency
	}
	if opts.FleetMaxPages <= 0 {
		opts.FleetMaxPages = defaultFleetMaxPages
	}
	return &TriggerService{
		engine:      engine,
		connections: connections,
		syncLogs:    syncLogs,
		orders:      orders,
		opts:        opts,
		logger:      logger,
	}
}

// SyncOrders runs one orders page, fresh when cursor and logID are empty
func (s *TriggerService) SyncOrders(ctx context.Context, ownerID string, mode domain.SyncMode, cursor, logID string) (*domain.SyncPageResult, error) {
	return s.engine.SyncOrdersPage(ctx, SyncOrdersRequest{
		OwnerID:     ownerID,
		Mode:        mode,
		Cursor:      cursor,
		LogID:       logID,
		InitiatedBy: ownerID,
	})
}

// SyncProducts runs a fresh product sync
func (s *TriggerService) SyncProducts(ctx context.Context, ownerID string) (*domain.SyncPageResult, error) {
	return s.engine.SyncProducts(ctx, SyncProductsRequest{
		OwnerID:     ownerID,
		Mode:        domain.SyncModeManual,
		InitiatedBy: ownerID,
	})
}

// SyncFleet syncs every active owner. One owner's failure never aborts the others.
func (s *TriggerService) SyncFleet(ctx context.Context, req FleetSyncRequest) (*FleetSyncResult, error) {
	mode := req.Mode
	if mode == "" {
		mode = domain.SyncModeManual
	}
	initiatedBy := req.InitiatedBy
	if initiatedBy == "" {
		initiatedBy = "cron"
	}

	ownerIDs, err := s.ListActiveOwners(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]OwnerSyncResult, len(ownerIDs))
	var mu sync.Mutex
	fleet := &FleetSyncResult{Owners: len(ownerIDs)}

	var g errgroup.Group
	g.SetLimit(s.opts.FleetConcurrency)
	for i, ownerID := range ownerIDs {
		g.Go(func() error {
			result := s.syncOwner(ctx, ownerID, mode, initiatedBy)
			results[i] = result

			mu.Lock()
			if result.Error == "" {
				fleet.Succeeded++
			} else {
				fleet.Failed++
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	fleet.Results = results
	s.logger.Info().
		Str("mode", string(mode)).
		Int("owners", fleet.Owners).
		Int("succeeded", fleet.Succeeded).
		Int("failed", fleet.Failed).
		Msg("Fleet sync finished")
	return fleet, nil
}

// syncOwner drains the owner's orders run page by page, then syncs products once
func (s *TriggerService) syncOwner(ctx context.Context, ownerID string, mode domain.SyncMode, initiatedBy string) OwnerSyncResult {
	result := OwnerSyncResult{OwnerID: ownerID, Status: string(domain.SyncStatusSuccess)}
	fail := func(err error) OwnerSyncResult {
		result.Status = string(domain.SyncStatusError)
		result.Error = err.Error()
		s.logger.Warn().Err(err).Str("ownerId", ownerID).Msg("Fleet sync failed for owner")
		return result
	}

	req := SyncOrdersRequest{OwnerID: ownerID, Mode: mode, InitiatedBy: initiatedBy}
	if pending, err := s.PendingOrdersRun(ctx, ownerID); err != nil {
		return fail(err)
	} else if pending != nil {
		req.LogID = pending.ID
		req.Cursor = pending.Cursor
	}

	for {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		if result.Pages >= s.opts.FleetMaxPages {
			return fail(ErrMaxPagesReached)
		}

		page, err := s.engine.SyncOrdersPage(ctx, req)
		if err != nil {
			return fail(err)
		}
		result.Pages++
		result.OrdersProcessed += page.Processed
		if page.Completed {
			break
		}
		req.Cursor = page.NextCursor
		req.LogID = page.LogID
	}

	products, err := s.engine.SyncProducts(ctx, SyncProductsRequest{OwnerID: ownerID, Mode: mode, InitiatedBy: initiatedBy})
	if err != nil {
		return fail(err)
	}
	result.ProductsProcessed = products.Processed
	return result
}

// ListActiveOwners returns the owners with an active connection
func (s *TriggerService) ListActiveOwners(ctx context.Context) ([]string, error) {
	ownerIDs, err := s.connections.ListActiveOwnerIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active owners: %w", err)
	}
	return ownerIDs, nil
}

// PendingOrdersRun returns the latest orders run when it was left in progress
func (s *TriggerService) PendingOrdersRun(ctx context.Context, ownerID string) (*domain.SyncLogEntry, error) {
	conn, err := s.connections.GetActiveConnection(ctx, ownerID)
	if err != nil || conn == nil {
		return nil, err
	}
	latest, err := s.syncLogs.Latest(ctx, conn.ID, domain.ResourceOrders)
	if err != nil || latest == nil {
		return nil, err
	}
	if latest.Status != domain.SyncStatusInProgress {
		return nil, nil
	}
	return latest, nil
}

// Status reports the latest orders run and when the next automatic run is due
func (s *TriggerService) Status(ctx context.Context, ownerID string) (*domain.SyncStatusReport, error) {
	conn, err := s.connections.GetActiveConnection(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if conn == nil {
		return &domain.SyncStatusReport{Connected: false}, nil
	}

	report := &domain.SyncStatusReport{Connected: true, LastSyncAt: conn.LastSyncAt}
	if report.StoredOrders, err = s.orders.CountOrders(ctx, conn.ID); err != nil {
		return nil, err
	}
	latest, err := s.syncLogs.Latest(ctx, conn.ID, domain.ResourceOrders)
	if err != nil {
		return nil, err
	}

	var base *time.Time
	if conn.LastSyncAt != nil {
		base = conn.LastSyncAt
	}
	if latest != nil {
		report.LastMode = latest.Mode()
		report.LastStatus = latest.Status
		report.LastItemCount = latest.ItemsProcessed
		if base == nil {
			base = &latest.StartedAt
		}
	}
	if base != nil {
		next := base.Add(s.opts.AutoSyncInterval)
		report.NextAutoSyncAt = &next
	}
	return report, nil
}

// History lists the owner's most recent sync log entries, newest first
func (s *TriggerService) History(ctx context.Context, ownerID string, limit int) ([]*domain.SyncLogEntry, error) {
	conn, err := s.connections.GetActiveConnection(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if conn == nil {
		return []*domain.SyncLogEntry{}, nil
	}
	return s.syncLogs.List(ctx, conn.ID, limit)
}
