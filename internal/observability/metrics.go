// Package observability collects Prometheus metrics for the service.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics aggregates the Prometheus registry and application metrics.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	upstreamFetches *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	skippedRows     *prometheus.CounterVec
}

// NewMetrics initialises the registry and base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "formosa_http_requests_total",
		Help: "HTTP requests by route and status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "formosa_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	fetches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "formosa_upstream_fetches_total",
		Help: "Fetches issued against MOPS by host and outcome.",
	}, []string{"host", "outcome"})
	lookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "formosa_cache_lookups_total",
		Help: "Read-through cache lookups by endpoint and result.",
	}, []string{"endpoint", "result"})
	skipped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "formosa_crawler_skipped_rows_total",
		Help: "Table rows skipped during tolerant parsing, by endpoint.",
	}, []string{"endpoint"})
	registry.MustRegister(requests, duration, fetches, lookups, skipped)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		upstreamFetches: fetches,
		cacheLookups:    lookups,
		skippedRows:     skipped,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveUpstreamFetch counts one outbound request to MOPS.
func (m *Metrics) ObserveUpstreamFetch(host, outcome string) {
	if m == nil {
		return
	}
	m.upstreamFetches.WithLabelValues(host, outcome).Inc()
}

// ObserveCacheLookup counts a read-through lookup ("hit", "miss" or "bypass").
func (m *Metrics) ObserveCacheLookup(endpoint, result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(endpoint, result).Inc()
}

// ObserveSkippedRows counts rows dropped by a crawler.
func (m *Metrics) ObserveSkippedRows(endpoint string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.skippedRows.WithLabelValues(endpoint).Add(float64(n))
}

// Middleware instruments chi routes with request counters and latency.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
