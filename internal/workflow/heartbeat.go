package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"vidforge/internal/logging"
	"vidforge/internal/queue"
)

// HeartbeatMonitor keeps a delivery's lease alive while its job runs.
type HeartbeatMonitor struct {
	queue    queue.Queue
	logger   *slog.Logger
	interval time.Duration
	lease    time.Duration
}

// NewHeartbeatMonitor creates a monitor that extends leases to lease every
// interval.
func NewHeartbeatMonitor(q queue.Queue, logger *slog.Logger, interval, lease time.Duration) *HeartbeatMonitor {
	if logger == nil {
		logger = logging.NewNop()
	}
	if interval <= 0 || (lease > 0 && interval >= lease) {
		interval = lease / 3
	}
	return &HeartbeatMonitor{queue: q, logger: logger, interval: interval, lease: lease}
}

// StartLoop extends d's lease until ctx is cancelled. When the lease is lost
// to another consumer it calls onLost and returns, so the caller can abort
// the job instead of settling a message it no longer owns.
func (h *HeartbeatMonitor) StartLoop(ctx context.Context, wg *sync.WaitGroup, d *queue.Delivery, onLost func()) {
	defer wg.Done()
	if h.interval <= 0 {
		return
	}
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	logger := logging.WithContext(ctx, logging.NewComponentLogger(h.logger, "workflow-heartbeat"))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := h.queue.Extend(ctx, d, h.lease)
			switch {
			case err == nil:
			case errors.Is(err, queue.ErrLeaseLost):
				logger.Warn("queue lease lost; abandoning job",
					logging.String(logging.FieldEventType, "lease_lost"),
					logging.String("message_id", d.ID),
					logging.String(logging.FieldErrorHint, "raise queue.lease_seconds if jobs outlive their lease"),
					logging.String(logging.FieldImpact, "another worker will run the job"),
				)
				if onLost != nil {
					onLost()
				}
				return
			case errors.Is(err, context.Canceled):
				logger.Debug("heartbeat stopped by shutdown")
				return
			default:
				logger.Warn("lease extension failed", logging.Error(err))
			}
		}
	}
}
