package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"archie-core-shopify-sync/internal/domain"
	"archie-core-shopify-sync/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncOrdersPage_SinglePage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conn := f.connect(t, "owner-1")
	f.store.pages[""] = &ports.OrdersPage{Orders: shopifyOrders(t, 1001, 3, "12.50")}

	result, err := f.engine.SyncOrdersPage(ctx, SyncOrdersRequest{OwnerID: "owner-1"})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Processed)
	assert.Equal(t, 3, result.TotalProcessed)
	assert.True(t, result.Completed)
	assert.Empty(t, result.NextCursor)
	assert.NotEmpty(t, result.LogID)

	count, err := f.orders.CountOrders(ctx, conn.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)

	entry, err := f.syncLogs.Get(ctx, result.LogID)
	require.NoError(t, err)
	assert.Equal(t, domain.SyncStatusSuccess, entry.Status)
	assert.Equal(t, "orders:manual", entry.Kind)
	assert.Equal(t, 3, entry.ItemsProcessed)
	assert.NotNil(t, entry.CompletedAt)
	assert.Equal(t, "owner-1", entry.InitiatedBy)

	// manual runs ask for the full history
	req := f.store.lastRequest()
	assert.Empty(t, req.Cursor)
	assert.Nil(t, req.UpdatedSince)
	assert.Equal(t, "shpat_owner-1", f.store.creds[0].AccessToken)

	events := f.events.all()
	require.Len(t, events, 1)
	assert.Equal(t, domain.SyncStatusSuccess, events[0].Status)
	assert.Equal(t, 3, events[0].Processed)
}

func TestSyncOrdersPage_TwoPagesAccumulate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conn := f.connect(t, "owner-1")
	f.store.pages[""] = &ports.OrdersPage{Orders: shopifyOrders(t, 1, 250, "10.00"), NextCursor: "page-2"}
	f.store.pages["page-2"] = &ports.OrdersPage{Orders: shopifyOrders(t, 251, 50, "10.00")}

	first, err := f.engine.SyncOrdersPage(ctx, SyncOrdersRequest{OwnerID: "owner-1"})
	require.NoError(t, err)
	assert.Equal(t, 250, first.Processed)
	assert.Equal(t, "page-2", first.NextCursor)
	assert.False(t, first.Completed)

	entry, err := f.syncLogs.Get(ctx, first.LogID)
	require.NoError(t, err)
	assert.Equal(t, domain.SyncStatusInProgress, entry.Status)
	assert.Equal(t, 250, entry.ItemsProcessed)
	assert.Equal(t, "page-2", entry.Cursor)

	second, err := f.engine.SyncOrdersPage(ctx, SyncOrdersRequest{
		OwnerID: "owner-1",
		Cursor:  first.NextCursor,
		LogID:   first.LogID,
	})
	require.NoError(t, err)
	assert.Equal(t, 50, second.Processed)
	assert.Equal(t, 300, second.TotalProcessed)
	assert.Equal(t, first.LogID, second.LogID)
	assert.True(t, second.Completed)
	assert.Equal(t, "page-2", f.store.lastRequest().Cursor)

	entry, err = f.syncLogs.Get(ctx, first.LogID)
	require.NoError(t, err)
	assert.Equal(t, domain.SyncStatusSuccess, entry.Status)
	assert.Equal(t, 300, entry.ItemsProcessed)

	count, err := f.orders.CountOrders(ctx, conn.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 300, count)

	// only one run was recorded
	entries, err := f.syncLogs.List(ctx, conn.ID, 10)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSyncOrdersPage_ResumeUsesStoredCursor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.connect(t, "owner-1")
	f.store.pages[""] = &ports.OrdersPage{Orders: shopifyOrders(t, 1, 2, "1.00"), NextCursor: "page-2"}
	f.store.pages["page-2"] = &ports.OrdersPage{Orders: shopifyOrders(t, 3, 1, "1.00")}

	first, err := f.engine.SyncOrdersPage(ctx, SyncOrdersRequest{OwnerID: "owner-1"})
	require.NoError(t, err)

	second, err := f.engine.SyncOrdersPage(ctx, SyncOrdersRequest{OwnerID: "owner-1", LogID: first.LogID})
	require.NoError(t, err)
	assert.Equal(t, "page-2", f.store.lastRequest().Cursor)
	assert.True(t, second.Completed)
	assert.Equal(t, 3, second.TotalProcessed)
}

func TestSyncOrdersPage_ResyncIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conn := f.connect(t, "owner-1")
	f.store.pages[""] = &ports.OrdersPage{Orders: shopifyOrders(t, 1, 3, "5.00")}

	_, err := f.engine.SyncOrdersPage(ctx, SyncOrdersRequest{OwnerID: "owner-1"})
	require.NoError(t, err)

	f.store.pages[""] = &ports.OrdersPage{Orders: shopifyOrders(t, 1, 3, "7.00")}
	_, err = f.engine.SyncOrdersPage(ctx, SyncOrdersRequest{OwnerID: "owner-1"})
	require.NoError(t, err)

	orders, err := f.orders.ListOrders(ctx, conn.ID, domain.OrderFilter{})
	require.NoError(t, err)
	require.Len(t, orders, 3)
	for _, o := range orders {
		assert.Equal(t, "7", o.TotalPrice.String())
	}
}

func TestSyncOrdersPage_AutoModeFiltersSinceLastRunStart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conn := f.connect(t, "owner-1")

	runStart := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	f.clock.Set(runStart)
	f.store.pages[""] = &ports.OrdersPage{Orders: shopifyOrders(t, 1, 1, "1.00")}
	_, err := f.engine.SyncOrdersPage(ctx, SyncOrdersRequest{OwnerID: "owner-1"})
	require.NoError(t, err)

	stored, err := f.connections.GetActiveConnection(ctx, "owner-1")
	require.NoError(t, err)
	require.NotNil(t, stored.LastSyncAt)
	assert.WithinDuration(t, runStart, *stored.LastSyncAt, time.Millisecond)

	f.clock.Set(runStart.Add(10 * time.Minute))
	result, err := f.engine.SyncOrdersPage(ctx, SyncOrdersRequest{OwnerID: "owner-1", Mode: domain.SyncModeAuto})
	require.NoError(t, err)

	req := f.store.lastRequest()
	require.NotNil(t, req.UpdatedSince)
	assert.WithinDuration(t, runStart, *req.UpdatedSince, time.Millisecond)
	assert.Empty(t, req.Cursor)

	entry, err := f.syncLogs.Get(ctx, result.LogID)
	require.NoError(t, err)
	assert.Equal(t, "orders:auto", entry.Kind)
	assert.Equal(t, conn.ID, entry.ConnectionID)
}

func TestSyncOrdersPage_RateLimitLeavesRunResumable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conn := f.connect(t, "owner-1")
	f.store.pages[""] = &ports.OrdersPage{Orders: shopifyOrders(t, 1, 2, "1.00"), NextCursor: "page-2"}
	f.store.pages["page-2"] = &ports.OrdersPage{Orders: shopifyOrders(t, 3, 2, "1.00")}

	first, err := f.engine.SyncOrdersPage(ctx, SyncOrdersRequest{OwnerID: "owner-1"})
	require.NoError(t, err)

	f.store.setError(&domain.RateLimitError{RetryAfter: 2 * time.Second})
	_, err = f.engine.SyncOrdersPage(ctx, SyncOrdersRequest{OwnerID: "owner-1", Cursor: "page-2", LogID: first.LogID})
	var rateErr *domain.RateLimitError
	require.ErrorAs(t, err, &rateErr)
	assert.Equal(t, 2*time.Second, rateErr.RetryAfter)

	entry, err := f.syncLogs.Get(ctx, first.LogID)
	require.NoError(t, err)
	assert.Equal(t, domain.SyncStatusInProgress, entry.Status)
	assert.Equal(t, 2, entry.ItemsProcessed)
	assert.Equal(t, "page-2", entry.Cursor)

	count, err := f.orders.CountOrders(ctx, conn.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	f.store.setError(nil)
	resumed, err := f.engine.SyncOrdersPage(ctx, SyncOrdersRequest{OwnerID: "owner-1", Cursor: "page-2", LogID: first.LogID})
	require.NoError(t, err)
	assert.True(t, resumed.Completed)
	assert.Equal(t, 4, resumed.TotalProcessed)
}

func TestSyncOrdersPage_RejectedCursorClosesRun(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.connect(t, "owner-1")
	f.store.pages[""] = &ports.OrdersPage{Orders: shopifyOrders(t, 1, 2, "1.00"), NextCursor: "stale-cursor"}
	f.store.cursorErr["stale-cursor"] = &domain.UpstreamError{Status: 400, Body: `{"errors":{"page_info":"Invalid value."}}`}

	first, err := f.engine.SyncOrdersPage(ctx, SyncOrdersRequest{OwnerID: "owner-1", Mode: domain.SyncModeAuto})
	require.NoError(t, err)

	_, err = f.engine.SyncOrdersPage(ctx, SyncOrdersRequest{OwnerID: "owner-1", LogID: first.LogID})
	var upstreamErr *domain.UpstreamError
	require.ErrorAs(t, err, &upstreamErr)

	entry, err := f.syncLogs.Get(ctx, first.LogID)
	require.NoError(t, err)
	assert.Equal(t, domain.SyncStatusError, entry.Status)
	assert.NotNil(t, entry.CompletedAt)
	assert.Contains(t, entry.ErrorMessage, "page_info")

	t.Run("first page 400 stays resumable", func(t *testing.T) {
		f.store.setError(&domain.UpstreamError{Status: 400, Body: "bad request"})
		defer f.store.setError(nil)

		_, err := f.engine.SyncOrdersPage(ctx, SyncOrdersRequest{OwnerID: "owner-1"})
		require.Error(t, err)
		events := f.events.all()
		assert.Equal(t, domain.SyncStatusInProgress, events[len(events)-1].Status)
	})
}

func TestSyncOrdersPage_AuthFailureClosesRun(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conn := f.connect(t, "owner-1")
	f.store.setError(&domain.AuthenticationError{Status: 401, Message: "Invalid API key or access token"})

	_, err := f.engine.SyncOrdersPage(ctx, SyncOrdersRequest{OwnerID: "owner-1"})
	var authErr *domain.AuthenticationError
	require.ErrorAs(t, err, &authErr)

	latest, err := f.syncLogs.Latest(ctx, conn.ID, domain.ResourceOrders)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, domain.SyncStatusError, latest.Status)
	assert.Contains(t, latest.ErrorMessage, "authentication")
	assert.NotNil(t, latest.CompletedAt)

	_, err = f.engine.SyncOrdersPage(ctx, SyncOrdersRequest{OwnerID: "owner-1", LogID: latest.ID})
	assert.ErrorIs(t, err, domain.ErrSyncRunClosed)

	events := f.events.all()
	require.NotEmpty(t, events)
	assert.Equal(t, domain.SyncStatusError, events[0].Status)
}

func TestSyncOrdersPage_PersistenceFailureMarksError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conn := f.connect(t, "owner-1")
	f.store.pages[""] = &ports.OrdersPage{Orders: shopifyOrders(t, 1, 2, "1.00")}

	engine := f.newEngine(failingOrders{OrderRepository: f.orders, err: errors.New("disk full")})
	_, err := engine.SyncOrdersPage(ctx, SyncOrdersRequest{OwnerID: "owner-1"})
	var persistErr *domain.PersistenceError
	require.ErrorAs(t, err, &persistErr)
	assert.Equal(t, "upsert orders", persistErr.Op)

	latest, err := f.syncLogs.Latest(ctx, conn.ID, domain.ResourceOrders)
	require.NoError(t, err)
	assert.Equal(t, domain.SyncStatusError, latest.Status)
	assert.Equal(t, "disk full", latest.ErrorMessage)
	assert.Equal(t, 0, latest.ItemsProcessed)
}

func TestSyncOrdersPage_FreshRunOverridesStaleRun(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.connect(t, "owner-1")
	f.store.pages[""] = &ports.OrdersPage{Orders: shopifyOrders(t, 1, 1, "1.00"), NextCursor: "page-2"}

	stale, err := f.engine.SyncOrdersPage(ctx, SyncOrdersRequest{OwnerID: "owner-1"})
	require.NoError(t, err)
	fresh, err := f.engine.SyncOrdersPage(ctx, SyncOrdersRequest{OwnerID: "owner-1"})
	require.NoError(t, err)
	assert.NotEqual(t, stale.LogID, fresh.LogID)

	entry, err := f.syncLogs.Get(ctx, stale.LogID)
	require.NoError(t, err)
	assert.Equal(t, domain.SyncStatusOverridden, entry.Status)

	_, err = f.engine.SyncOrdersPage(ctx, SyncOrdersRequest{OwnerID: "owner-1", Cursor: "page-2", LogID: stale.LogID})
	assert.ErrorIs(t, err, domain.ErrSyncRunClosed)
}

func TestSyncOrdersPage_LockContention(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conn := f.connect(t, "owner-1")

	release, ok, err := f.locker.Acquire(ctx, conn.ID, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.engine.SyncOrdersPage(ctx, SyncOrdersRequest{OwnerID: "owner-1"})
	assert.ErrorIs(t, err, domain.ErrSyncInProgress)

	entries, err := f.syncLogs.List(ctx, conn.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, entries)

	require.NoError(t, release(ctx))
	_, err = f.engine.SyncOrdersPage(ctx, SyncOrdersRequest{OwnerID: "owner-1"})
	assert.NoError(t, err)
}

func TestSyncOrdersPage_RequestErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.connect(t, "owner-1")
	other := f.connect(t, "owner-2")
	f.store.pages[""] = &ports.OrdersPage{Orders: shopifyOrders(t, 1, 1, "1.00"), NextCursor: "next"}

	otherRun, err := f.engine.SyncOrdersPage(ctx, SyncOrdersRequest{OwnerID: other.OwnerID})
	require.NoError(t, err)

	t.Run("no connection", func(t *testing.T) {
		_, err := f.engine.SyncOrdersPage(ctx, SyncOrdersRequest{OwnerID: "nobody"})
		assert.ErrorIs(t, err, domain.ErrNoConnection)
	})

	t.Run("cursor without log id", func(t *testing.T) {
		_, err := f.engine.SyncOrdersPage(ctx, SyncOrdersRequest{OwnerID: "owner-1", Cursor: "next"})
		var validationErr *domain.ValidationError
		assert.ErrorAs(t, err, &validationErr)
	})

	t.Run("unknown log id", func(t *testing.T) {
		_, err := f.engine.SyncOrdersPage(ctx, SyncOrdersRequest{OwnerID: "owner-1", Cursor: "next", LogID: "missing"})
		assert.ErrorIs(t, err, domain.ErrSyncLogNotFound)
	})

	t.Run("log id of another connection", func(t *testing.T) {
		_, err := f.engine.SyncOrdersPage(ctx, SyncOrdersRequest{OwnerID: "owner-1", Cursor: "next", LogID: otherRun.LogID})
		assert.ErrorIs(t, err, domain.ErrSyncLogNotFound)
	})
}

func TestSyncOrdersPage_UndecryptableCredentialsLeaveNoTrace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conn := f.connect(t, "owner-1")
	f.vault.openErr = &domain.AuthenticationError{Status: 401, Message: "stored access token could not be decrypted"}

	_, err := f.engine.SyncOrdersPage(ctx, SyncOrdersRequest{OwnerID: "owner-1"})
	var authErr *domain.AuthenticationError
	require.ErrorAs(t, err, &authErr)

	entries, err := f.syncLogs.List(ctx, conn.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Empty(t, f.store.requests)
}

func TestSyncProducts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conn := f.connect(t, "owner-1")
	before, err := f.connections.GetActiveConnection(ctx, "owner-1")
	require.NoError(t, err)

	f.store.products = append(f.store.products,
		decodeProduct(t, `{"id": 1, "title": "Mug", "variants": [{"id": 11, "price": "9.50", "inventory_quantity": 4}, {"id": 12, "price": "11.00", "inventory_quantity": 6}]}`),
		decodeProduct(t, `{"id": 2, "title": "Poster"}`),
	)

	result, err := f.engine.SyncProducts(ctx, SyncProductsRequest{OwnerID: "owner-1", Mode: domain.SyncModeAuto})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Processed)
	assert.True(t, result.Completed)

	entry, err := f.syncLogs.Get(ctx, result.LogID)
	require.NoError(t, err)
	assert.Equal(t, "products:auto", entry.Kind)
	assert.Equal(t, domain.SyncStatusSuccess, entry.Status)

	products, err := f.products.ListProducts(ctx, conn.ID, domain.ProductFilter{Search: "mug"})
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "9.5", products[0].Price.String())
	assert.Equal(t, 10, products[0].InventoryCount)

	// product runs do not move the incremental order filter
	after, err := f.connections.GetActiveConnection(ctx, "owner-1")
	require.NoError(t, err)
	assert.WithinDuration(t, *before.LastSyncAt, *after.LastSyncAt, time.Millisecond)
}

type failingOrders struct {
	ports.OrderRepository
	err error
}

func (f failingOrders) UpsertOrders(context.Context, []*domain.Order) error {
	return f.err
}
