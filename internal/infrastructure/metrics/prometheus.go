package metrics

import (
	"net/http"
	"strconv"
	"time"

	"archie-core-shopify-sync/internal/domain"
	"archie-core-shopify-sync/internal/ports"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "shopify_sync"

// Recorder exposes sync engine and HTTP metrics on its own registry
type Recorder struct {
	registry *prometheus.Registry

	pagesTotal    *prometheus.CounterVec
	itemsTotal    *prometheus.CounterVec
	pageDuration  *prometheus.HistogramVec
	failuresTotal *prometheus.CounterVec
	runsCompleted *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
}

// NewRecorder creates a Recorder with process and Go runtime collectors registered
func NewRecorder() *Recorder {
	r := &Recorder{registry: prometheus.NewRegistry()}

	r.pagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pages_total",
		Help:      "Sync engine invocations that persisted a page.",
	}, []string{"resource", "mode"})

	r.itemsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "items_total",
		Help:      "Records upserted by the sync engine.",
	}, []string{"resource", "mode"})

	r.pageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "page_duration_seconds",
		Help:      "Wall time of one sync engine invocation.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"resource", "mode"})

	r.failuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "failures_total",
		Help:      "Sync engine invocations that failed, by reason.",
	}, []string{"resource", "mode", "reason"})

	r.runsCompleted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "runs_completed_total",
		Help:      "Sync runs that reached success.",
	}, []string{"resource", "mode"})

	r.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests served, by route and status.",
	}, []string{"method", "route", "status"})

	r.httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.pagesTotal,
		r.itemsTotal,
		r.pageDuration,
		r.failuresTotal,
		r.runsCompleted,
		r.httpRequests,
		r.httpDuration,
	)
	return r
}

func (r *Recorder) ObservePage(resource domain.SyncResource, mode domain.SyncMode, items int, duration time.Duration) {
	r.pagesTotal.WithLabelValues(string(resource), string(mode)).Inc()
	r.itemsTotal.WithLabelValues(string(resource), string(mode)).Add(float64(items))
	r.pageDuration.WithLabelValues(string(resource), string(mode)).Observe(duration.Seconds())
}

func (r *Recorder) ObserveFailure(resource domain.SyncResource, mode domain.SyncMode, reason string) {
	r.failuresTotal.WithLabelValues(string(resource), string(mode), reason).Inc()
}

func (r *Recorder) ObserveRunCompleted(resource domain.SyncResource, mode domain.SyncMode) {
	r.runsCompleted.WithLabelValues(string(resource), string(mode)).Inc()
}

// Handler serves the registry in the Prometheus exposition format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Registry returns the underlying registry
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Middleware records request counts and latency labelled by the matched chi route
func (r *Recorder) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
		next.ServeHTTP(ww, req)

		route := "unmatched"
		if rctx := chi.RouteContext(req.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		r.httpRequests.WithLabelValues(req.Method, route, strconv.Itoa(status)).Inc()
		r.httpDuration.WithLabelValues(req.Method, route).Observe(time.Since(start).Seconds())
	})
}

var _ ports.SyncMetrics = (*Recorder)(nil)
