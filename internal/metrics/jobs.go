package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(jobsTotal, jobDuration, stageDuration, jobRetries, workersBusy, queueDepth)
}

var (
	jobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidforge_jobs_total",
			Help: "Job deliveries by type and outcome (completed, retried, failed, skipped).",
		},
		[]string{"type", "outcome"},
	)

	jobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vidforge_job_duration_seconds",
			Help:    "Wall time of one pipeline attempt.",
			Buckets: []float64{30, 60, 120, 300, 600, 900, 1800, 3600},
		},
		[]string{"type", "outcome"},
	)

	stageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vidforge_stage_duration_seconds",
			Help:    "Wall time of each pipeline stage.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		},
		[]string{"stage", "success"},
	)

	jobRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vidforge_job_retries_total",
			Help: "Deliveries returned to the queue for another attempt.",
		},
	)

	workersBusy = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "vidforge_workers_busy",
			Help: "Workers currently running a job.",
		},
	)

	queueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vidforge_queue_messages",
			Help: "Queue messages by state.",
		},
		[]string{"state"},
	)
)

// JobFinished records one attempt's outcome and duration.
func JobFinished(jobType, outcome string, d time.Duration) {
	jobsTotal.WithLabelValues(norm(jobType), norm(outcome)).Inc()
	jobDuration.WithLabelValues(norm(jobType), norm(outcome)).Observe(d.Seconds())
}

// StageFinished records one stage's duration.
func StageFinished(stage string, success bool, d time.Duration) {
	stageDuration.WithLabelValues(norm(stage), boolLabel(success)).Observe(d.Seconds())
}

// JobRetried counts a delivery scheduled for another attempt.
func JobRetried() { jobRetries.Inc() }

// WorkerBusy adjusts the busy worker gauge by delta.
func WorkerBusy(delta int) { workersBusy.Add(float64(delta)) }

// QueueDepth publishes the latest queue counts.
func QueueDepth(ready, delayed, leased, dead int) {
	queueDepth.WithLabelValues("ready").Set(float64(ready))
	queueDepth.WithLabelValues("delayed").Set(float64(delayed))
	queueDepth.WithLabelValues("leased").Set(float64(leased))
	queueDepth.WithLabelValues("dead").Set(float64(dead))
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
