package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Workflow metrics
var (
	WorkflowRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remedy_workflow_runs_total",
			Help: "Total number of workflow runs",
		},
		[]string{"trigger", "outcome"},
	)

	WorkflowDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "remedy_workflow_duration_seconds",
			Help:    "Duration of workflow runs in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"trigger"},
	)
)

// Mail metrics
var (
	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remedy_notifications_sent_total",
			Help: "Total number of notification send attempts",
		},
		[]string{"result"},
	)

	RepliesScanned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "remedy_replies_scanned_total",
			Help: "Total number of inbound replies scanned",
		},
	)
)

// Store metrics
var (
	ComplaintsResolved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "remedy_complaints_resolved_total",
			Help: "Total number of complaints moved to the resolved collection",
		},
	)
)
