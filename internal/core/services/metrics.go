package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ingestionsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ingest_client_submissions_total",
			Help: "Total number of ingestion submissions started",
		},
	)

	// Outcome is the settled status of a job: SUCCESS, FAILED or IDLE.
	ingestionOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_client_outcomes_total",
			Help: "Total number of settled ingestion jobs by final status",
		},
		[]string{"status"},
	)

	streamEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_client_stream_events_total",
			Help: "Total number of log stream events by kind",
		},
		[]string{"kind"},
	)

	protocolErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ingest_client_protocol_errors_total",
			Help: "Total number of rejected log stream messages",
		},
	)

	healthFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_client_health_fetches_total",
			Help: "Total number of health snapshot fetches by result",
		},
		[]string{"result"},
	)
)

var (
	sandboxJobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sandbox_jobs_total",
			Help: "Total number of sandbox ingestion jobs by final status",
		},
		[]string{"status"},
	)

	sandboxJobDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sandbox_job_duration_seconds",
			Help:    "Sandbox ingestion job duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60},
		},
	)
)
