package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RemindersSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminders_sent_total",
			Help: "Reminders delivered, counted per task for deadlines and per user for digests",
		},
		[]string{"kind"},
	)

	RemindersFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminders_failed_total",
			Help: "Reminder deliveries that failed",
		},
		[]string{"kind", "category"},
	)

	JobRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminder_job_runs_total",
			Help: "Scheduler job ticks by outcome",
		},
		[]string{"job", "outcome"},
	)

	JobSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminder_job_skipped_total",
			Help: "Triggers skipped because the job was already running",
		},
		[]string{"job"},
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reminder_job_duration_seconds",
			Help:    "Duration of scheduler job ticks",
			Buckets: []float64{.01, .05, .1, .5, 1, 5, 15, 60, 300},
		},
		[]string{"job"},
	)

	LedgerPurged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reminder_ledger_purged_total",
			Help: "Ledger entries removed by the retention sweep",
		},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)
)
