package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"archie-core-shopify-sync/internal/domain"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_SyncCounters(t *testing.T) {
	r := NewRecorder()

	r.ObservePage(domain.ResourceOrders, domain.SyncModeManual, 250, 300*time.Millisecond)
	r.ObservePage(domain.ResourceOrders, domain.SyncModeManual, 50, 100*time.Millisecond)
	r.ObserveRunCompleted(domain.ResourceOrders, domain.SyncModeManual)
	r.ObserveFailure(domain.ResourceProducts, domain.SyncModeManual, "rate_limited")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.pagesTotal.WithLabelValues("orders", "manual")))
	assert.Equal(t, 300.0, testutil.ToFloat64(r.itemsTotal.WithLabelValues("orders", "manual")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.runsCompleted.WithLabelValues("orders", "manual")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.failuresTotal.WithLabelValues("products", "manual", "rate_limited")))
}

func TestRecorder_MiddlewareAndHandler(t *testing.T) {
	r := NewRecorder()
	router := chi.NewRouter()
	router.Use(r.Middleware)
	router.Get("/api/orders/{id}", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	router.Handle("/metrics", r.Handler())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/orders/42", nil))
	require.Equal(t, http.StatusTeapot, rec.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.httpRequests.WithLabelValues("GET", "/api/orders/{id}", "418")))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "shopify_sync_http_requests_total"))
	assert.True(t, strings.Contains(body, "go_goroutines"))
}
