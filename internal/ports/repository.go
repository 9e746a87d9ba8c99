package ports

import (
	"context"
	"time"

	"archie-core-shopify-sync/internal/domain"
)

// ConnectionRepository is the credential store
type ConnectionRepository interface {
	// GetActiveConnection returns nil, nil when the owner has no active connection
	GetActiveConnection(ctx context.Context, ownerID string) (*domain.Connection, error)
	GetActiveConnectionByEndpoint(ctx context.Context, endpoint string) (*domain.Connection, error)
	// UpsertConnection replaces the owner's single connection, marking it active
	UpsertConnection(ctx context.Context, connection *domain.Connection) (*domain.Connection, error)
	RecordLastSync(ctx context.Context, connectionID string, at time.Time) error
	// DeactivateAndCleanup removes dependent rows and records the cleanup as a terminal log entry
	DeactivateAndCleanup(ctx context.Context, connectionID string, initiatedBy string) (*domain.SyncLogEntry, error)
	ListActiveOwnerIDs(ctx context.Context) ([]string, error)
}

// SyncLogRepository is the sync ledger
type SyncLogRepository interface {
	Create(ctx context.Context, entry *domain.SyncLogEntry) error
	// Get returns nil, nil when the entry does not exist
	Get(ctx context.Context, id string) (*domain.SyncLogEntry, error)
	// Advance atomically adds delta to the running total. An empty nextCursor completes the run.
	Advance(ctx context.Context, id string, delta int, nextCursor string) (*domain.SyncLogEntry, error)
	// Fail closes an in-progress entry with status error
	Fail(ctx context.Context, id string, message string) error
	// OverrideInProgress closes stale in-progress runs of the same resource
	OverrideInProgress(ctx context.Context, connectionID string, resource domain.SyncResource, exceptID string) (int64, error)
	// Latest returns nil, nil when the connection has no entry for resource
	Latest(ctx context.Context, connectionID string, resource domain.SyncResource) (*domain.SyncLogEntry, error)
	List(ctx context.Context, connectionID string, limit int) ([]*domain.SyncLogEntry, error)
}

// OrderRepository persists synced orders
type OrderRepository interface {
	// UpsertOrders inserts or fully overwrites rows keyed on connection and external id
	UpsertOrders(ctx context.Context, orders []*domain.Order) error
	ListOrders(ctx context.Context, connectionID string, filter domain.OrderFilter) ([]*domain.Order, error)
	CountOrders(ctx context.Context, connectionID string) (int64, error)
	RedactCustomer(ctx context.Context, connectionID string, email string) (int64, error)
	Totals(ctx context.Context, connectionID string) (*domain.OrderTotals, error)
	CountByFulfillmentStatus(ctx context.Context, connectionID string) ([]domain.StatusCount, error)
	// EachOrder streams orders created at or after since in batches
	EachOrder(ctx context.Context, connectionID string, since *time.Time, fn func(*domain.Order) error) error
}

// ProductRepository persists synced products
type ProductRepository interface {
	UpsertProducts(ctx context.Context, products []*domain.Product) error
	ListProducts(ctx context.Context, connectionID string, filter domain.ProductFilter) ([]*domain.Product, error)
	CountProducts(ctx context.Context, connectionID string) (int64, error)
	DeleteProduct(ctx context.Context, connectionID string, externalID string) error
}

// WebhookEventRepository archives verified webhook deliveries
type WebhookEventRepository interface {
	LogWebhook(ctx context.Context, event *domain.WebhookEvent) error
	ListRecent(ctx context.Context, shop string, limit int64) ([]*domain.WebhookEvent, error)
}
