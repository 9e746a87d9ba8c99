package api

import (
	"context"
	"encoding/json"
	"net/http"

	"archie-core-shopify-sync/internal/application"
	"archie-core-shopify-sync/internal/domain"
	"archie-core-shopify-sync/internal/infrastructure/metrics"
	securitymiddleware "archie-core-shopify-sync/internal/infrastructure/middleware"
	"archie-core-shopify-sync/internal/infrastructure/pubsub"
	"archie-core-shopify-sync/internal/ports"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"
)

// ConnectionManager connects and disconnects an owner's store
type ConnectionManager interface {
	Connect(ctx context.Context, input application.ConnectInput) (*domain.ConnectionSummary, error)
	Disconnect(ctx context.Context, ownerID, initiatedBy string) (*domain.SyncLogEntry, error)
	GetConnection(ctx context.Context, ownerID string) (*domain.ConnectionSummary, error)
}

// SyncTrigger starts sync runs
type SyncTrigger interface {
	SyncOrders(ctx context.Context, ownerID string, mode domain.SyncMode, cursor, logID string) (*domain.SyncPageResult, error)
	SyncProducts(ctx context.Context, ownerID string) (*domain.SyncPageResult, error)
	SyncFleet(ctx context.Context, req application.FleetSyncRequest) (*application.FleetSyncResult, error)
	Status(ctx context.Context, ownerID string) (*domain.SyncStatusReport, error)
	History(ctx context.Context, ownerID string, limit int) ([]*domain.SyncLogEntry, error)
}

// DashboardReader serves persisted data to the dashboard
type DashboardReader interface {
	ListOrders(ctx context.Context, ownerID string, filter domain.OrderFilter) ([]*domain.Order, error)
	ListProducts(ctx context.Context, ownerID string, filter domain.ProductFilter) ([]*domain.Product, error)
	Summary(ctx context.Context, ownerID string) (*domain.DashboardSummary, error)
	SalesTrend(ctx context.Context, ownerID string, days int) ([]domain.DailySales, error)
	StatusDistribution(ctx context.Context, ownerID string) ([]domain.StatusCount, error)
	TopProducts(ctx context.Context, ownerID string, limit int) ([]domain.TopProduct, error)
}

// WebhookDispatcher routes verified webhook events to their handlers
type WebhookDispatcher interface {
	Dispatch(ctx context.Context, event *domain.WebhookEvent) error
}

// WebhookVerifier checks the HMAC of a webhook delivery
type WebhookVerifier interface {
	Verify(r *http.Request, payload []byte) bool
}

// FleetStarter hands a fleet sync to the workflow engine instead of running it in the request
type FleetStarter interface {
	StartFleetSync(ctx context.Context, mode domain.SyncMode) (workflowID, runID string, err error)
}

// Dependencies wires the HTTP surface
type Dependencies struct {
	Connections ConnectionManager
	Triggers    SyncTrigger
	Dashboard   DashboardReader
	Webhooks    WebhookDispatcher
	Verifier    WebhookVerifier
	// WebhookArchive is optional
	WebhookArchive ports.WebhookEventRepository
	Events         *pubsub.SyncPubSub
	// Metrics is optional
	Metrics *metrics.Recorder
	// FleetStarter is optional; without it the cron endpoint runs the fleet sync in process
	FleetStarter FleetStarter
	CronSecret   string
	JWTSecret    string
	SwaggerFile  string
	Logger       zerolog.Logger
}

// NewRouter builds the chi router serving every route of the sync backend
func NewRouter(deps Dependencies) http.Handler {
	logger := deps.Logger
	if deps.SwaggerFile == "" {
		deps.SwaggerFile = "./docs/swagger.json"
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(securitymiddleware.SecurityHeadersMiddleware())
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware)
	}

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics.Handler())
	}
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	r.Get("/swagger/doc.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		http.ServeFile(w, r, deps.SwaggerFile)
	})

	r.Post("/webhooks/shopify", webhookHandler(deps.Verifier, deps.WebhookArchive, deps.Webhooks, logger))

	r.With(securitymiddleware.CronSecret(deps.CronSecret, logger)).
		Post("/api/cron/sync", cronSyncHandler(deps.Triggers, deps.FleetStarter, logger))

	// Owner routes
	r.Group(func(r chi.Router) {
		r.Use(securitymiddleware.OwnerAuth(deps.JWTSecret, logger))

		r.Route("/api/connection", func(r chi.Router) {
			r.Post("/", connectHandler(deps.Connections, logger))
			r.Get("/", getConnectionHandler(deps.Connections, logger))
			r.Delete("/", disconnectHandler(deps.Connections, logger))
		})

		r.Route("/api/sync", func(r chi.Router) {
			r.Post("/orders", syncOrdersHandler(deps.Triggers, logger))
			r.Post("/products", syncProductsHandler(deps.Triggers, logger))
			r.Get("/status", syncStatusHandler(deps.Triggers, logger))
			r.Get("/history", syncHistoryHandler(deps.Triggers, logger))
			r.Get("/events", syncEventsHandler(deps.Events, logger))
		})

		r.Get("/api/orders", listOrdersHandler(deps.Dashboard, logger))
		r.Get("/api/products", listProductsHandler(deps.Dashboard, logger))

		r.Route("/api/dashboard", func(r chi.Router) {
			r.Get("/summary", summaryHandler(deps.Dashboard, logger))
			r.Get("/sales-trend", salesTrendHandler(deps.Dashboard, logger))
			r.Get("/status-distribution", statusDistributionHandler(deps.Dashboard, logger))
			r.Get("/top-products", topProductsHandler(deps.Dashboard, logger))
		})
	})

	return r
}
