// Package metrics exposes Prometheus collectors for the calendar server.
package metrics

import (
	"bufio"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "headercal_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "headercal_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	// Presence metrics
	ActiveConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "headercal_active_connections",
			Help: "Open client connections by transport",
		},
		[]string{"transport"},
	)

	PresenceRecomputes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "headercal_presence_recomputes_total",
			Help: "User presence recounts by outcome",
		},
		[]string{"outcome"},
	)

	PresenceSweeps = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "headercal_presence_sweeps_total",
			Help: "Completed presence sweeps",
		},
	)

	// Reconciliation metrics
	ReconcileMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "headercal_reconcile_mutations_total",
			Help: "Availability row mutations planned by reconciliation",
		},
		[]string{"kind"},
	)

	ReconcileDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "headercal_reconcile_duration_seconds",
			Help:    "Time to plan and apply an availability insertion",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
	)

	// Entry point outcomes
	EntryPointCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "headercal_entry_point_calls_total",
			Help: "Entry point invocations by result code",
		},
		[]string{"entry_point", "result"},
	)

	// Scheduled jobs
	JobRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "headercal_job_runs_total",
			Help: "Scheduled job runs by job and result",
		},
		[]string{"job", "result"},
	)

	// Token cache
	TokenCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "headercal_token_cache_lookups_total",
			Help: "Identity token verification cache lookups",
		},
		[]string{"result"},
	)
)

var numericSegment = regexp.MustCompile(`/\d+(/|$)`)

// normalizePath collapses numeric ids so label cardinality stays bounded.
func normalizePath(path string) string {
	return numericSegment.ReplaceAllString(path, "/{id}$1")
}

// RecordEntryPoint counts one entry point invocation. A nil error is
// recorded as "ok"; otherwise code names the failure.
func RecordEntryPoint(name, code string) {
	if code == "" {
		code = "ok"
	}
	EntryPointCalls.WithLabelValues(name, code).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps streaming responses working through the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack keeps WebSocket upgrades working through the recorder.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	return h.Hijack()
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Middleware records request counts and latency. Paths use the chi route
// pattern when one matched.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		path = normalizePath(path)

		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rec.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}
