package cron

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	metricsOnce sync.Once

	jobRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "replyloop_job_runs_total",
		Help: "Completed job runs by job name and status.",
	}, []string{"job", "status"})

	jobSkips = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "replyloop_job_skips_total",
		Help: "Ticks skipped because the previous run was still in flight.",
	}, []string{"job"})

	jobDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "replyloop_job_duration_seconds",
		Help:    "Wall-clock duration of job runs.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
)

// RegisterMetrics registers the scheduler's collectors with the default
// Prometheus registry. Safe to call more than once.
func RegisterMetrics() {
	metricsOnce.Do(func() {
		prometheus.MustRegister(jobRuns, jobSkips, jobDuration)
	})
}
