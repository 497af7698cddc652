// Package stageexec runs one pipeline stage and persists its progress.
package stageexec

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"vidforge/internal/logging"
	"vidforge/internal/metrics"
	"vidforge/internal/project"
	"vidforge/internal/services"
	"vidforge/internal/stage"
)

// JobWriter persists job state.
type JobWriter interface {
	UpdateJob(ctx context.Context, job *project.Job) error
}

// Options controls one stage execution.
type Options struct {
	Logger  *slog.Logger
	Store   JobWriter
	Handler stage.Handler
	Stage   project.Stage
	Run     *stage.Run
}

// Run sets the job's stage, persists it, runs Prepare and Execute, then
// records the completed step. On failure the job keeps its PROCESSING
// status with Stage=FAILED, FailedStage and Error set; the caller decides
// whether the attempt was final.
func Run(ctx context.Context, opts Options) error {
	if opts.Handler == nil {
		return fmt.Errorf("stage handler unavailable: %s", opts.Stage)
	}
	if opts.Store == nil {
		return fmt.Errorf("job store is required")
	}
	if opts.Run == nil || opts.Run.Job == nil {
		return fmt.Errorf("stage run is required")
	}
	job := opts.Run.Job

	stageCtx := services.WithStage(ctx, string(opts.Stage))
	stageLogger := logging.WithContext(stageCtx, opts.Logger)
	started := time.Now()

	stageLogger.Info(
		"stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.Int("attempt", opts.Run.Attempt),
		logging.Int("completed_steps", job.Progress.CompletedSteps),
	)

	job.Stage = opts.Stage
	job.Progress.CurrentStep = opts.Stage
	if err := opts.Store.UpdateJob(stageCtx, job); err != nil {
		return fmt.Errorf("persist stage transition: %w", err)
	}

	if err := opts.Handler.Prepare(stageCtx, opts.Run); err != nil {
		return handleFailure(stageCtx, stageLogger, opts, started, err)
	}
	if err := opts.Handler.Execute(stageCtx, opts.Run); err != nil {
		return handleFailure(stageCtx, stageLogger, opts, started, err)
	}

	job.Progress.Complete(opts.Stage)
	if err := opts.Store.UpdateJob(stageCtx, job); err != nil {
		return fmt.Errorf("persist stage result: %w", err)
	}
	metrics.StageFinished(string(opts.Stage), true, time.Since(started))

	stageLogger.Info(
		"stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Duration("stage_duration", time.Since(started)),
		logging.Int("completed_steps", job.Progress.CompletedSteps),
		logging.Float64("percent", job.Progress.Percent),
	)
	return nil
}

func handleFailure(ctx context.Context, logger *slog.Logger, opts Options, started time.Time, stageErr error) error {
	job := opts.Run.Job
	message := FailureMessage(stageErr)
	job.Stage = project.StageFailed
	job.FailedStage = opts.Stage
	job.Error = message
	metrics.StageFinished(string(opts.Stage), false, time.Since(started))

	details := services.Details(stageErr)
	logger.Error(
		"stage failed",
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.String("error_kind", details.Kind),
		logging.String("error_message", message),
		logging.Bool("final_attempt", opts.Run.Final),
		logging.Error(stageErr),
	)
	if ctx.Err() == nil {
		if err := opts.Store.UpdateJob(ctx, job); err != nil {
			logger.Error("failed to persist stage failure", logging.Error(err))
		}
	}
	return stageErr
}

// FailureMessage renders err for the job's error column.
func FailureMessage(err error) string {
	if err == nil {
		return "stage failed"
	}
	details := services.Details(err)
	parts := []string{}
	for _, part := range []string{details.Operation, details.Message, details.Cause} {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	if len(parts) == 0 || details.Kind == "unknown" {
		return strings.TrimSpace(err.Error())
	}
	return strings.Join(parts, ": ")
}
