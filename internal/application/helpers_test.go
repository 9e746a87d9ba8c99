package application

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"archie-core-shopify-sync/internal/domain"
	"archie-core-shopify-sync/internal/infrastructure/lock"
	"archie-core-shopify-sync/internal/infrastructure/repository"
	"archie-core-shopify-sync/internal/ports"

	goshopify "github.com/bold-commerce/go-shopify/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// fakeStore serves canned order pages keyed by cursor; "" is the first page
type fakeStore struct {
	mu        sync.Mutex
	pages     map[string]*ports.OrdersPage
	products  []goshopify.Product
	err       error
	cursorErr map[string]error
	verifyErr error
	shop      *goshopify.Shop
	requests  []ports.OrdersPageRequest
	creds     []domain.StoreCredentials
}

func newFakeStore() *fakeStore {
	return &fakeStore{pages: make(map[string]*ports.OrdersPage), cursorErr: make(map[string]error)}
}

func (s *fakeStore) VerifyCredentials(_ context.Context, creds domain.StoreCredentials) (*goshopify.Shop, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = append(s.creds, creds)
	if s.verifyErr != nil {
		return nil, s.verifyErr
	}
	if s.shop != nil {
		return s.shop, nil
	}
	return &goshopify.Shop{Name: "Test Shop"}, nil
}

func (s *fakeStore) FetchOrdersPage(_ context.Context, creds domain.StoreCredentials, req ports.OrdersPageRequest) (*ports.OrdersPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	s.creds = append(s.creds, creds)
	if s.err != nil {
		return nil, s.err
	}
	if err, ok := s.cursorErr[req.Cursor]; ok {
		return nil, err
	}
	if page, ok := s.pages[req.Cursor]; ok {
		return page, nil
	}
	return &ports.OrdersPage{}, nil
}

func (s *fakeStore) FetchAllProducts(_ context.Context, creds domain.StoreCredentials) ([]goshopify.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = append(s.creds, creds)
	if s.err != nil {
		return nil, s.err
	}
	return s.products, nil
}

func (s *fakeStore) setError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *fakeStore) lastRequest() ports.OrdersPageRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[len(s.requests)-1]
}

// fakeVault stores the access token as "sealed:<token>"
type fakeVault struct {
	openErr error
}

func (v *fakeVault) Seal(conn *domain.Connection, creds domain.StoreCredentials) error {
	conn.EncryptedAccessToken = "sealed:" + creds.AccessToken
	conn.EncryptedAPIKey = "sealed:" + creds.APIKey
	conn.EncryptedAPISecret = "sealed:" + creds.APISecret
	return nil
}

func (v *fakeVault) Open(conn *domain.Connection) (domain.StoreCredentials, error) {
	if v.openErr != nil {
		return domain.StoreCredentials{}, v.openErr
	}
	return domain.StoreCredentials{
		Endpoint:    conn.StoreEndpoint,
		AccessToken: strings.TrimPrefix(conn.EncryptedAccessToken, "sealed:"),
	}, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*domain.SyncEvent
}

func (p *recordingPublisher) Publish(event *domain.SyncEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) all() []*domain.SyncEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*domain.SyncEvent(nil), p.events...)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fixture struct {
	connections ports.ConnectionRepository
	syncLogs    ports.SyncLogRepository
	orders      ports.OrderRepository
	products    ports.ProductRepository
	store       *fakeStore
	vault       *fakeVault
	locker      *lock.MemoryLocker
	events      *recordingPublisher
	clock       *fakeClock
	engine      *SyncEngine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := repository.OpenDatabase("sqlite://:memory:", zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, repository.AutoMigrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	f := &fixture{
		connections: repository.NewGormConnectionRepository(db),
		syncLogs:    repository.NewGormSyncLogRepository(db),
		orders:      repository.NewGormOrderRepository(db),
		products:    repository.NewGormProductRepository(db),
		store:       newFakeStore(),
		vault:       &fakeVault{},
		locker:      lock.NewMemoryLocker(),
		events:      &recordingPublisher{},
		clock:       &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
	}
	f.engine = f.newEngine(f.orders)
	return f
}

func (f *fixture) newEngine(orders ports.OrderRepository) *SyncEngine {
	return NewSyncEngine(SyncEngineDeps{
		Connections: f.connections,
		SyncLogs:    f.syncLogs,
		Orders:      orders,
		Products:    f.products,
		Client:      f.store,
		Vault:       f.vault,
		Locker:      f.locker,
		Events:      f.events,
		Clock:       f.clock.Now,
	}, zerolog.Nop())
}

func (f *fixture) connect(t *testing.T, ownerID string) *domain.Connection {
	t.Helper()
	conn, err := f.connections.UpsertConnection(context.Background(), &domain.Connection{
		OwnerID:              ownerID,
		StoreEndpoint:        ownerID + ".myshopify.com",
		ShopName:             "Shop " + ownerID,
		EncryptedAccessToken: "sealed:shpat_" + ownerID,
	})
	require.NoError(t, err)
	return conn
}

// shopifyOrders decodes n Shopify orders with ids starting at firstID
func shopifyOrders(t *testing.T, firstID, n int, total string) []goshopify.Order {
	t.Helper()
	items := make([]string, 0, n)
	for i := 0; i < n; i++ {
		id := firstID + i
		items = append(items, fmt.Sprintf(`{
			"id": %d,
			"name": "#%d",
			"total_price": %q,
			"currency": "USD",
			"email": "buyer%d@example.com",
			"financial_status": "paid",
			"created_at": "2026-02-%02dT10:00:00Z",
			"line_items": [{"product_id": 7, "title": "Mug", "quantity": 1, "price": %q}]
		}`, id, id, total, id, 1+i%28, total))
	}
	var orders []goshopify.Order
	require.NoError(t, json.Unmarshal([]byte("["+strings.Join(items, ",")+"]"), &orders))
	return orders
}

func decodeOrder(t *testing.T, raw string) goshopify.Order {
	t.Helper()
	var order goshopify.Order
	require.NoError(t, json.Unmarshal([]byte(raw), &order))
	return order
}

func decodeProduct(t *testing.T, raw string) goshopify.Product {
	t.Helper()
	var product goshopify.Product
	require.NoError(t, json.Unmarshal([]byte(raw), &product))
	return product
}
