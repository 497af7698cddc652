package workflow

import (
	"context"
	"errors"
	"log/slog"

	"vidforge/internal/logging"
	"vidforge/internal/notifications"
	"vidforge/internal/project"
)

func (c *Consumer) notifyCompleted(ctx context.Context, logger *slog.Logger, job *project.Job) {
	if job == nil {
		return
	}
	payload := c.basePayload(ctx, job)
	if job.Result != nil {
		payload["videoUrl"] = job.Result.VideoURL
	}
	c.publish(ctx, logger, notifications.EventJobCompleted, payload)
}

func (c *Consumer) notifyFailed(ctx context.Context, logger *slog.Logger, job *project.Job, attempts int, message string) {
	if job == nil {
		return
	}
	payload := c.basePayload(ctx, job)
	payload["stage"] = string(job.FailedStage)
	payload["error"] = message
	payload["attempts"] = attempts
	c.publish(ctx, logger, notifications.EventJobFailed, payload)
}

func (c *Consumer) basePayload(ctx context.Context, job *project.Job) notifications.Payload {
	payload := notifications.Payload{
		"jobId":   job.ID,
		"videoId": job.VideoID,
		"type":    string(job.Type),
	}
	if video, err := c.store.GetVideo(ctx, job.VideoID); err == nil && video != nil && video.Storyboard != nil {
		payload["title"] = video.Storyboard.Title
	}
	return payload
}

func (c *Consumer) publish(ctx context.Context, logger *slog.Logger, event notifications.Event, payload notifications.Payload) {
	if c.notifier == nil {
		return
	}
	if err := c.notifier.Publish(ctx, event, payload); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("shutting down, notification not sent", logging.String("event", string(event)))
			return
		}
		logger.Debug("notification failed", logging.String("event", string(event)), logging.Error(err))
	}
}
