package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"vidforge/internal/config"
	"vidforge/internal/logging"
	"vidforge/internal/metrics"
	"vidforge/internal/pipeline"
	"vidforge/internal/project"
	"vidforge/internal/queue"
	"vidforge/internal/services"
	"vidforge/internal/stageexec"
)

// handle runs one delivery and settles its message exactly once: ack,
// retry or dead-letter. Deliveries interrupted by shutdown or lease loss are
// left unsettled.
func (c *Consumer) handle(ctx context.Context, worker string, d *queue.Delivery) {
	ctx = services.WithRequestID(services.WithWorker(ctx, worker), uuid.NewString())
	ctx = services.WithVideoID(services.WithJobID(ctx, d.Payload.JobID), d.Payload.VideoID)
	logger := logging.WithContext(ctx, c.logger)
	settleCtx := context.WithoutCancel(ctx)

	if err := d.Payload.Validate(); err != nil {
		logging.ErrorWithContext(logger, "malformed queue message dead-lettered", "message_invalid",
			logging.Error(err),
			logging.String("message_id", d.ID),
			logging.String(logging.FieldErrorHint, "inspect the producer that enqueued this message"),
		)
		if err := c.queue.DeadLetter(settleCtx, d, true, err.Error()); err != nil {
			logger.Error("failed to dead-letter malformed message", logging.Error(err))
		}
		return
	}

	c.markBusy(d.Payload.JobID, 1)
	defer c.markBusy("", -1)

	final := c.policy.Exhausted(d.Attempt)
	logger.Info("job started",
		logging.String(logging.FieldEventType, "job_start"),
		logging.String("message_id", d.ID),
		logging.Int("attempt", d.Attempt),
		logging.Bool("final_attempt", final),
	)

	jobCtx, cancelJob := context.WithCancel(ctx)
	var lost atomic.Bool
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go c.heartbeat.StartLoop(jobCtx, &hbWG, d, func() {
		lost.Store(true)
		cancelJob()
	})

	start := time.Now()
	outcome, err := c.processor.Process(jobCtx, d.Payload.JobID, d.Attempt, final)
	cancelJob()
	hbWG.Wait()
	elapsed := time.Since(start)

	switch {
	case lost.Load():
		logger.Warn("job abandoned after losing its lease",
			logging.String(logging.FieldEventType, "job_abandoned"),
			logging.String(logging.FieldErrorHint, "raise queue.lease_seconds or lower queue.heartbeat_interval"),
			logging.String(logging.FieldImpact, "the message is redelivered to another worker"),
		)
	case ctx.Err() != nil:
		logger.Info("job interrupted by shutdown; message will be redelivered",
			logging.String(logging.FieldEventType, "job_interrupted"),
		)
	case err == nil:
		c.settleSuccess(settleCtx, logger, d, outcome, elapsed)
	case !final:
		c.settleRetry(settleCtx, logger, d, err)
	default:
		c.settleFailure(settleCtx, logger, d, err, elapsed)
	}
}

func (c *Consumer) settleSuccess(ctx context.Context, logger *slog.Logger, d *queue.Delivery, outcome pipeline.Outcome, elapsed time.Duration) {
	retain := c.cfg.Queue.CompletedRetention == config.RetentionRetain
	if err := c.queue.Ack(ctx, d, retain); err != nil {
		logger.Error("failed to ack message", logging.Error(err), logging.String("message_id", d.ID))
	}
	job := c.loadJob(ctx, logger, d.Payload.JobID)
	metrics.JobFinished(jobType(job), string(outcome), elapsed)

	if outcome == pipeline.OutcomeSkipped {
		logger.Info("terminal job acked without processing", logging.String(logging.FieldEventType, "job_skipped"))
		return
	}
	logger.Info("job completed",
		logging.String(logging.FieldEventType, "job_complete"),
		logging.Int("attempt", d.Attempt),
		logging.Duration("job_duration", elapsed),
	)
	c.notifyCompleted(ctx, logger, job)
}

func (c *Consumer) settleRetry(ctx context.Context, logger *slog.Logger, d *queue.Delivery, cause error) {
	message := stageexec.FailureMessage(cause)
	delay := c.policy.Backoff(d.Attempt)
	c.setLastError(cause)
	if err := c.queue.Retry(ctx, d, delay, message); err != nil {
		logger.Error("failed to schedule retry", logging.Error(err), logging.String("message_id", d.ID))
		return
	}
	metrics.JobRetried()
	logging.WarnWithContext(logger, "job attempt failed; retry scheduled", "job_retry",
		logging.Int("attempt", d.Attempt),
		logging.Int("max_attempts", c.policy.MaxAttempts),
		logging.Duration("retry_in", delay),
		logging.String("error_message", message),
		logging.String(logging.FieldErrorHint, errorHint(cause)),
		logging.String(logging.FieldImpact, "the whole job reruns after the backoff"),
	)
}

func (c *Consumer) settleFailure(ctx context.Context, logger *slog.Logger, d *queue.Delivery, cause error, elapsed time.Duration) {
	message := stageexec.FailureMessage(cause)
	c.setLastError(cause)

	job, err := c.store.MarkJobFailed(ctx, d.Payload.JobID, "", message)
	if err != nil {
		logger.Error("failed to mark job failed", logging.Error(err))
	}
	retain := c.cfg.Queue.FailedRetention == config.RetentionRetain
	if err := c.queue.DeadLetter(ctx, d, retain, message); err != nil {
		logger.Error("failed to dead-letter message", logging.Error(err), logging.String("message_id", d.ID))
	}
	metrics.JobFinished(jobType(job), string(pipeline.OutcomeFailed), elapsed)

	details := services.Details(cause)
	logging.ErrorWithContext(logger, "job failed after final attempt", "job_failed",
		logging.Alert("job_failure"),
		logging.Int("attempt", d.Attempt),
		logging.String("error_message", message),
		logging.String("error_kind", details.Kind),
		logging.String("error_operation", details.Operation),
		logging.String(logging.FieldErrorHint, errorHint(cause)),
		logging.String(logging.FieldImpact, "the video is marked FAILED"),
	)
	c.notifyFailed(ctx, logger, job, d.Attempt, message)
}

// errorHint suggests where an operator should look for each error kind.
func errorHint(err error) string {
	switch services.Kind(err) {
	case "validation", "incompatible_capability":
		return "fix the job's provider config or storyboard and resubmit"
	case "provider":
		return "check provider credentials, quota and status"
	case "media_processing":
		return "check ffmpeg output in the debug log"
	case "storage":
		return "check storage credentials and bucket access"
	case "configuration":
		return "run vidforge check"
	case "not_found":
		return "verify the referenced video, scene or object exists"
	default:
		return "check logs for details"
	}
}

func (c *Consumer) loadJob(ctx context.Context, logger *slog.Logger, id string) *project.Job {
	job, err := c.store.GetJob(ctx, id)
	if err != nil {
		logger.Warn("failed to reload job", logging.Error(err))
		return nil
	}
	return job
}

func jobType(job *project.Job) string {
	if job == nil {
		return ""
	}
	return string(job.Type)
}

func (c *Consumer) markBusy(jobID string, delta int) {
	metrics.WorkerBusy(delta)
	c.mu.Lock()
	c.busy += delta
	if jobID != "" {
		c.lastJobID = jobID
	}
	c.mu.Unlock()
}

func (c *Consumer) setLastError(err error) {
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
}
