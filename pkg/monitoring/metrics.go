package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Command metrics
	commandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "patient_commands_total",
			Help: "Total number of patient commands by outcome",
		},
		[]string{"command", "outcome"},
	)

	// Projection metrics. Failed syncs are swallowed by the
	// orchestrator, so this counter is the main visibility into
	// read-store drift.
	projectionSyncsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "patient_projection_syncs_total",
			Help: "Total number of read projection sync attempts",
		},
		[]string{"success"},
	)

	// Event publishing metrics
	eventPublishesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "patient_event_publishes_total",
			Help: "Total number of domain event publish attempts",
		},
		[]string{"event_type", "success"},
	)

	// Cache metrics
	cacheRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "patient_cache_requests_total",
			Help: "Total number of read-path cache lookups",
		},
		[]string{"result"},
	)

	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
)

// RecordCommand records a command outcome
func RecordCommand(command, outcome string) {
	commandsTotal.WithLabelValues(command, outcome).Inc()
}

// RecordProjection records a read projection sync attempt
func RecordProjection(success bool) {
	projectionSyncsTotal.WithLabelValues(strconv.FormatBool(success)).Inc()
}

// RecordPublish records an event publish attempt
func RecordPublish(eventType string, success bool) {
	eventPublishesTotal.WithLabelValues(eventType, strconv.FormatBool(success)).Inc()
}

// RecordCacheRequest records a cache lookup result
func RecordCacheRequest(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheRequestsTotal.WithLabelValues(result).Inc()
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// HTTPMiddleware records request count and duration per endpoint
func HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapper := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapper, r)

		httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(wrapper.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}

// responseWriter captures the status code for metrics
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
