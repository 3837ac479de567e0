package http

import (
	"strconv"
	"time"

	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Ingestion metrics
	jobsAccepted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ingest_jobs_accepted_total",
			Help: "Total number of accepted ingestion jobs",
		},
	)

	jobsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_jobs_rejected_total",
			Help: "Total number of rejected ingestion requests by HTTP status",
		},
		[]string{"status"},
	)

	uploadedBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ingest_uploaded_bytes_total",
			Help: "Total number of uploaded file bytes",
		},
	)

	// Stream metrics
	streamConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ingest_stream_connections",
			Help: "Number of open job status streams",
		},
	)

	streamFrames = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ingest_stream_frames_total",
			Help: "Total number of frames written to job status streams",
		},
	)
)

// MetricsMiddleware records HTTP request metrics
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The wrapped writer cannot be hijacked
		if r.Header.Get("Upgrade") == "websocket" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}

		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// MetricsHandler returns the Prometheus metrics handler
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

func recordJobAccepted(bytes int64) {
	jobsAccepted.Inc()
	uploadedBytes.Add(float64(bytes))
}

func recordJobRejected(status int) {
	jobsRejected.WithLabelValues(strconv.Itoa(status)).Inc()
}
