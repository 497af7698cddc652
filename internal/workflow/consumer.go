package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"vidforge/internal/config"
	"vidforge/internal/logging"
	"vidforge/internal/notifications"
	"vidforge/internal/pipeline"
	"vidforge/internal/project"
	"vidforge/internal/queue"
	"vidforge/internal/stage"
)

// Processor runs one attempt of a job.
type Processor interface {
	Process(ctx context.Context, jobID string, attempt int, final bool) (pipeline.Outcome, error)
	Health(ctx context.Context) []stage.Health
}

// Consumer drains the job queue with a fixed pool of workers.
type Consumer struct {
	cfg       *config.Config
	queue     queue.Queue
	store     *project.Store
	processor Processor
	notifier  notifications.Service
	logger    *slog.Logger
	heartbeat *HeartbeatMonitor
	policy    queue.RetryPolicy

	workers      int
	pollInterval time.Duration
	lease        time.Duration

	mu        sync.RWMutex
	running   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	busy      int
	lastErr   error
	lastJobID string
}

// NewConsumer constructs a consumer that notifies through the configured
// ntfy topic.
func NewConsumer(cfg *config.Config, q queue.Queue, store *project.Store, processor Processor, logger *slog.Logger) *Consumer {
	return NewConsumerWithNotifier(cfg, q, store, processor, logger, notifications.NewService(cfg))
}

// NewConsumerWithNotifier constructs a consumer with a custom notifier (used in tests).
func NewConsumerWithNotifier(cfg *config.Config, q queue.Queue, store *project.Store, processor Processor, logger *slog.Logger, notifier notifications.Service) *Consumer {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "workflow")
	if notifier == nil {
		notifier = notifications.NewService(nil)
	}
	lease := time.Duration(cfg.Queue.LeaseSeconds) * time.Second
	workers := cfg.Queue.Workers
	if workers <= 0 {
		workers = 1
	}
	poll := time.Duration(cfg.Queue.PollInterval) * time.Second
	if poll <= 0 {
		poll = time.Second
	}
	return &Consumer{
		cfg:          cfg,
		queue:        q,
		store:        store,
		processor:    processor,
		notifier:     notifier,
		logger:       logger,
		heartbeat:    NewHeartbeatMonitor(q, logger, time.Duration(cfg.Queue.HeartbeatInterval)*time.Second, lease),
		policy:       queue.PolicyFromConfig(cfg.Queue),
		workers:      workers,
		pollInterval: poll,
		lease:        lease,
	}
}

// Start launches the workers. They stop when ctx is cancelled or Stop is called.
func (c *Consumer) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return errors.New("consumer already running")
	}
	if c.queue == nil || c.store == nil || c.processor == nil {
		c.mu.Unlock()
		return errors.New("consumer requires a queue, a store and a processor")
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.running = true
	c.wg.Add(c.workers)
	c.mu.Unlock()

	c.logger.Info("consumer started",
		logging.String(logging.FieldEventType, "consumer_start"),
		logging.Int("workers", c.workers),
		logging.String("queue", c.cfg.Queue.Name),
		logging.Int("max_attempts", c.policy.MaxAttempts),
	)
	for i := range c.workers {
		go c.runWorker(runCtx, fmt.Sprintf("worker-%d", i+1))
	}
	return nil
}

// Stop cancels the workers and waits for in-flight jobs to unwind. Jobs
// interrupted this way are not settled; their leases expire and the
// messages are delivered again.
func (c *Consumer) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	cancel := c.cancel
	c.running = false
	c.cancel = nil
	c.mu.Unlock()

	cancel()
	c.wg.Wait()
	c.logger.Info("consumer stopped", logging.String(logging.FieldEventType, "consumer_stop"))
}

func (c *Consumer) runWorker(ctx context.Context, name string) {
	defer c.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		d, err := c.queue.Dequeue(ctx, c.lease)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.setLastError(err)
			c.logger.Error("failed to dequeue job",
				logging.Error(err),
				logging.String(logging.FieldEventType, "queue_fetch_failed"),
				logging.String(logging.FieldErrorHint, "check queue backend access"),
				logging.String("worker", name),
			)
			c.wait(ctx)
			continue
		}
		if d == nil {
			c.wait(ctx)
			continue
		}
		c.handle(ctx, name, d)
		c.refreshQueueDepth(ctx)
	}
}

func (c *Consumer) wait(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(c.pollInterval):
	}
}
