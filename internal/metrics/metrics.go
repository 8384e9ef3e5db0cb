// Package metrics provides Prometheus instrumentation for the folio portal.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// APIRequestsTotal counts calls to the remote portfolio API by endpoint and outcome.
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "folio_api_requests_total",
		Help: "Total requests to the remote portfolio API",
	}, []string{"endpoint", "outcome"})

	// APIRequestDuration tracks remote API latency by endpoint.
	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "folio_api_request_duration_seconds",
		Help:    "Remote portfolio API latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

	// CacheLookupsTotal counts selection cache lookups by kind and result (hit, miss, stale).
	CacheLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "folio_cache_lookups_total",
		Help: "Selection cache lookups",
	}, []string{"kind", "result"})

	// StaleCompletionsTotal counts fetch completions dropped because the view moved on.
	StaleCompletionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "folio_stale_completions_total",
		Help: "Async fetch completions ignored because their view is no longer active",
	}, []string{"panel"})

	// SessionTransitionsTotal counts session state changes by event (login, logout, expire).
	SessionTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "folio_session_transitions_total",
		Help: "Session state machine transitions",
	}, []string{"event"})

	// HTTPRequestsTotal counts portal HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "folio_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks portal request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "folio_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveAPI records one remote API call.
func ObserveAPI(endpoint string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	APIRequestsTotal.WithLabelValues(endpoint, outcome).Inc()
	APIRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

// Middleware returns an HTTP middleware that records request metrics.
// Paths outside known routes are collapsed to "other" to bound cardinality.
func Middleware(known func(path string) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			path := r.URL.Path
			if known != nil && !known(path) {
				path = "other"
			}
			HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
			HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Flush supports streamed responses.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
