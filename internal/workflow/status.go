package workflow

import (
	"context"

	"vidforge/internal/logging"
	"vidforge/internal/metrics"
	"vidforge/internal/project"
	"vidforge/internal/queue"
	"vidforge/internal/stage"
)

// StatusSummary represents lightweight consumer diagnostics.
type StatusSummary struct {
	Running     bool
	Workers     int
	Busy        int
	LastError   string
	LastJobID   string
	Queue       queue.Stats
	Jobs        map[project.JobStatus]int
	StageHealth []stage.Health
}

// Status returns the latest consumer information.
func (c *Consumer) Status(ctx context.Context) StatusSummary {
	c.mu.RLock()
	summary := StatusSummary{
		Running:   c.running,
		Workers:   c.workers,
		Busy:      c.busy,
		LastJobID: c.lastJobID,
	}
	if c.lastErr != nil {
		summary.LastError = c.lastErr.Error()
	}
	c.mu.RUnlock()

	if stats, ok := c.refreshQueueDepth(ctx); ok {
		summary.Queue = stats
	}
	jobs, err := c.store.CountJobs(ctx)
	if err != nil {
		c.logger.Warn("failed to count jobs", logging.Error(err))
	}
	summary.Jobs = jobs
	if c.processor != nil {
		summary.StageHealth = c.processor.Health(ctx)
	}
	return summary
}

// refreshQueueDepth reads queue stats and publishes them as gauges.
func (c *Consumer) refreshQueueDepth(ctx context.Context) (queue.Stats, bool) {
	stats, err := c.queue.Stats(ctx)
	if err != nil {
		if ctx.Err() == nil {
			c.logger.Warn("failed to read queue stats", logging.Error(err))
		}
		return queue.Stats{}, false
	}
	metrics.QueueDepth(stats.Ready, stats.Delayed, stats.Leased, stats.Dead)
	return stats, true
}
