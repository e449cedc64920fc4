package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Coordinator Metrics
var (
	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chaosswarm_submissions_total",
			Help: "Total number of submissions handled by the coordinator",
		},
		[]string{"result"}, // success, failure, rejected, error
	)

	SubmissionDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chaosswarm_submission_duration_seconds",
			Help:    "Duration of submissions from resolution to aggregation in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 15.0, 30.0},
		},
	)

	DispatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chaosswarm_dispatches_total",
			Help: "Total number of per-target dispatches to helpers",
		},
		[]string{"result"}, // success, failure, no_helper
	)

	DispatchDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chaosswarm_dispatch_duration_seconds",
			Help:    "Duration of a single dispatch to a helper in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 15.0},
		},
	)

	HelpersDiscovered = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chaosswarm_helpers_discovered",
			Help: "Number of helpers found in the last directory build",
		},
	)
)

// Executor Metrics
var (
	ExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chaosswarm_executions_total",
			Help: "Total number of local action executions",
		},
		[]string{"action", "result"}, // result: success, failure, rejected
	)

	ExecutionDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chaosswarm_execution_duration_seconds",
			Help:    "Duration of local action executions in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0, 10.0},
		},
		[]string{"action"},
	)
)

// HTTP Metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chaosswarm_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"path", "code"},
	)

	HTTPRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chaosswarm_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path"},
	)
)
