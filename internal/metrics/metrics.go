// internal/metrics/metrics.go

// Package metrics registers the Prometheus instruments exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	// HTTPRequestsTotal counts handled requests by method, route, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thesisflow_http_requests_total",
			Help: "Handled HTTP requests by method, route, and status code",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDuration tracks request latency in seconds by route.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "thesisflow_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds by route",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"method", "route"},
	)
)

// Enrollment metrics
var (
	// ApplicationDecisionsTotal counts decisions by kind (approve, reject,
	// auto_reject, unapprove).
	ApplicationDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thesisflow_application_decisions_total",
			Help: "Application decisions by kind",
		},
		[]string{"decision"},
	)

	// ApplicationsSubmittedTotal counts accepted submissions.
	ApplicationsSubmittedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "thesisflow_applications_submitted_total",
			Help: "Applications accepted for review",
		},
	)
)

// Cleanup metrics
var (
	// CleanupRunsTotal counts retention runs by outcome (completed, failed).
	CleanupRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thesisflow_cleanup_runs_total",
			Help: "Retention runs by outcome",
		},
		[]string{"outcome"},
	)

	// CleanupFilesDeleted counts files purged by the retention job.
	CleanupFilesDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "thesisflow_cleanup_files_deleted_total",
			Help: "Files purged by the retention job",
		},
	)

	// CleanupFileFailures counts file deletions that failed and will be
	// retried on a later run.
	CleanupFileFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "thesisflow_cleanup_file_failures_total",
			Help: "File deletions that failed during retention runs",
		},
	)

	// CleanupLastRunTimestamp records the unix time of the last finished run.
	CleanupLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "thesisflow_cleanup_last_run_timestamp_seconds",
			Help: "Unix time of the last finished retention run",
		},
	)
)
