package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(jobRunsTotal, jobDurationSeconds, jobItemsTotal) }

var (
	jobRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciler_job_runs_total",
			Help: "Scheduled reconciler runs by job and result.",
		},
		[]string{"job", "result"}, // 'ok', 'error', 'skipped', 'panic'
	)

	jobDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reconciler_job_duration_seconds",
			Help:    "Wall time of a reconciler run.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"job"},
	)

	jobItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciler_job_items_total",
			Help: "Subscriptions examined by reconciler runs, by outcome.",
		},
		[]string{"job", "outcome"}, // 'scanned', 'transitioned', 'notified', 'failed'
	)
)

func IncJobRun(job, result string) {
	jobRunsTotal.WithLabelValues(norm(job), norm(result)).Inc()
}

func ObserveJobDuration(job string, d time.Duration) {
	jobDurationSeconds.WithLabelValues(norm(job)).Observe(d.Seconds())
}

func AddJobItems(job, outcome string, n int) {
	if n <= 0 {
		return
	}
	jobItemsTotal.WithLabelValues(norm(job), norm(outcome)).Add(float64(n))
}
