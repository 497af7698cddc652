package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"time"

	"vidforge/internal/config"
	"vidforge/internal/logging"
	"vidforge/internal/media"
	"vidforge/internal/project"
	"vidforge/internal/providers"
	"vidforge/internal/render"
	"vidforge/internal/services"
	"vidforge/internal/stage"
	"vidforge/internal/stageexec"
	"vidforge/internal/staging"
	"vidforge/internal/stitch"
	"vidforge/internal/storage"
	"vidforge/internal/storyboard"
)

// Outcome tells the consumer what happened to a delivery.
type Outcome string

const (
	// OutcomeCompleted means every stage ran and the result was written.
	OutcomeCompleted Outcome = "completed"
	// OutcomeSkipped means the job was already terminal and nothing ran.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeFailed means the attempt failed; see the returned error.
	OutcomeFailed Outcome = "failed"
)

// Dependencies are the collaborators the orchestrator drives. Planner is
// optional; without it CREATE_VIDEO requires an existing storyboard.
type Dependencies struct {
	Store    *project.Store
	Registry *providers.Registry
	Renderer *render.Renderer
	Stitcher *stitch.Stitcher
	FFmpeg   *media.FFmpeg
	Storage  storage.Gateway
	Planner  storyboard.Planner
	Logger   *slog.Logger
}

type registeredStage struct {
	name    project.Stage
	handler stage.Handler
}

// Orchestrator executes jobs. It holds no per-job state, so one instance
// serves every worker.
type Orchestrator struct {
	cfg      *config.Config
	store    *project.Store
	registry *providers.Registry
	logger   *slog.Logger
	stages   []registeredStage
}

// New wires the stage handlers.
func New(cfg *config.Config, deps Dependencies) (*Orchestrator, error) {
	if cfg == nil {
		return nil, errors.New("pipeline: config is nil")
	}
	if deps.Store == nil || deps.Registry == nil || deps.Renderer == nil || deps.Stitcher == nil || deps.FFmpeg == nil || deps.Storage == nil {
		return nil, errors.New("pipeline: store, registry, renderer, stitcher, ffmpeg and storage are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "pipeline")
	o := &Orchestrator{
		cfg:      cfg,
		store:    deps.Store,
		registry: deps.Registry,
		logger:   logger,
	}
	o.stages = []registeredStage{
		{project.StageRenderingScenes, &renderStage{cfg: cfg, store: deps.Store, renderer: deps.Renderer, planner: deps.Planner, logger: logger}},
		{project.StageSynthesizingAudio, &syncStage{renderer: deps.Renderer}},
		{project.StageStitching, &stitchStage{cfg: cfg, stitcher: deps.Stitcher, ffmpeg: deps.FFmpeg, storage: deps.Storage, logger: logger}},
		{project.StageUploading, &uploadStage{cfg: cfg, storage: deps.Storage}},
	}
	return o, nil
}

// Health reports each stage's readiness.
func (o *Orchestrator) Health(ctx context.Context) []stage.Health {
	out := make([]stage.Health, 0, len(o.stages))
	for _, s := range o.stages {
		out = append(out, s.handler.HealthCheck(ctx))
	}
	return out
}

// Process runs one attempt of jobID. final marks the last attempt the
// retry policy allows; only then does a failure become terminal.
func (o *Orchestrator) Process(ctx context.Context, jobID string, attempt int, final bool) (Outcome, error) {
	job, err := o.store.GetJob(ctx, jobID)
	if err != nil {
		return OutcomeFailed, err
	}
	if job == nil {
		return OutcomeFailed, services.Wrap(services.ErrNotFound, "", "load job", fmt.Sprintf("job %s", jobID), nil)
	}
	ctx = services.WithVideoID(services.WithJobID(ctx, job.ID), job.VideoID)
	logger := logging.WithContext(ctx, o.logger)
	if job.Status.Terminal() {
		logger.Info("job already terminal; skipping delivery",
			logging.String(logging.FieldEventType, "job_skipped"),
			logging.String("status", string(job.Status)),
		)
		return OutcomeSkipped, nil
	}

	video, err := o.store.MustGetVideo(ctx, job.VideoID)
	if err != nil {
		return OutcomeFailed, o.fail(ctx, job, project.StageQueued, final, err)
	}
	if err := o.begin(ctx, job, attempt); err != nil {
		return OutcomeFailed, err
	}

	run := &stage.Run{Job: job, Video: video, Attempt: attempt, Final: final}
	if err := o.resolveModel(run); err != nil {
		return OutcomeFailed, o.fail(ctx, job, project.StageQueued, final, err)
	}

	workdir, err := staging.Acquire(o.cfg.Paths.StagingDir, job.ID)
	if err != nil {
		return OutcomeFailed, o.fail(ctx, job, project.StageQueued, final,
			services.Wrap(services.ErrConfiguration, "", "acquire workdir", "", err))
	}
	defer func() {
		if err := workdir.Release(); err != nil {
			logging.WarnWithContext(logger, "workdir cleanup failed", "workdir_cleanup_failed",
				logging.String("path", workdir.Path),
				logging.Error(err),
				logging.String(logging.FieldImpact, "stale files remain until the startup sweep"),
			)
		}
	}()
	run.Workdir = workdir

	for _, s := range o.stages {
		if err := stageexec.Run(ctx, stageexec.Options{
			Logger:  o.logger,
			Store:   o.store,
			Handler: s.handler,
			Stage:   s.name,
			Run:     run,
		}); err != nil {
			return OutcomeFailed, o.fail(ctx, job, s.name, final, err)
		}
	}

	if err := o.finish(ctx, run); err != nil {
		return OutcomeFailed, o.fail(ctx, job, project.StageUploading, final, err)
	}
	return OutcomeCompleted, nil
}

// begin moves the job to PROCESSING and resets per-attempt state.
func (o *Orchestrator) begin(ctx context.Context, job *project.Job, attempt int) error {
	prev := job.Status
	job.Status = project.JobProcessing
	job.Stage = project.StageQueued
	job.FailedStage = ""
	job.Error = ""
	job.Result = nil
	job.Attempts = attempt
	job.Progress = project.NewProgress(len(project.PipelineStages))
	if job.StartedAt.IsZero() {
		job.StartedAt = time.Now().UTC()
	}
	if err := o.store.UpdateJob(ctx, job); err != nil {
		return fmt.Errorf("mark job processing: %w", err)
	}
	if err := o.store.SetVideoStatus(ctx, job.VideoID, project.VideoProcessing, nil); err != nil {
		return err
	}
	message := fmt.Sprintf("attempt %d started", attempt)
	return o.store.AppendHistory(ctx, project.HistoryEntry{
		VideoID: job.VideoID, JobID: job.ID,
		From: string(prev), To: string(project.JobProcessing), Stage: project.StageQueued, Message: message,
	})
}

// resolveModel validates the job's provider config and binds its generator.
func (o *Orchestrator) resolveModel(run *stage.Run) error {
	params := run.Job.Params
	modelID := strings.TrimSpace(params.ProviderModelID)
	if modelID == "" {
		modelID = o.cfg.Providers.DefaultModel
	}
	spec, err := o.registry.GetModel(modelID)
	if err != nil {
		return err
	}
	modelCfg, err := o.registry.ValidateConfig(modelID, ProviderValues(params, spec, o.cfg.Providers.DefaultAspectRatio))
	if err != nil {
		return err
	}
	if err := o.registry.CheckCompatibility(modelID, modelCfg.Aspect(), modelCfg.Duration()); err != nil {
		return err
	}
	gen, err := o.registry.Generator(modelID)
	if err != nil {
		return err
	}
	run.ModelID = modelID
	run.Provider = spec.Provider()
	run.Config = modelCfg
	run.Generator = gen
	run.Voice = strings.TrimSpace(params.VoiceID)
	if run.Voice == "" {
		run.Voice = o.cfg.Narration.DefaultVoice
	}
	return nil
}

// ProviderValues assembles the user config for the registry from job
// params. Explicit aspect ratio and duration params override the free-form
// provider config; defaultAspect applies only when the model supports it.
func ProviderValues(params project.JobParams, spec providers.ModelSpec, defaultAspect string) map[string]any {
	values := make(map[string]any, len(params.ProviderConfig)+2)
	maps.Copy(values, params.ProviderConfig)
	if params.AspectRatio != "" {
		values["aspectRatio"] = params.AspectRatio
	} else if _, set := values["aspectRatio"]; !set && defaultAspect != "" && spec.Capabilities().SupportsAspectRatio(defaultAspect) {
		values["aspectRatio"] = defaultAspect
	}
	if params.DurationSeconds > 0 {
		values["durationSeconds"] = params.DurationSeconds
	}
	return values
}

// finish writes the result, the updated storyboard and the terminal status.
func (o *Orchestrator) finish(ctx context.Context, run *stage.Run) error {
	job, video := run.Job, run.Video
	board := *video.Storyboard
	board.Scenes = append([]project.Scene(nil), board.Scenes...)
	for _, clip := range run.Clips {
		scene, ok := board.Scene(clip.SceneNumber)
		if !ok {
			continue
		}
		scene.DurationSeconds = clip.DurationSeconds
		scene.NarrationSeconds = clip.NarrationSeconds
		if clip.VideoKey != "" {
			scene.VideoKey = clip.VideoKey
		}
		if clip.AudioKey != "" {
			scene.AudioKey = clip.AudioKey
		}
		if !clip.Reused {
			scene.Version++
		}
	}
	version, err := o.store.SaveStoryboard(ctx, video.ID, board)
	if err != nil {
		return err
	}
	run.Result.Version = version

	job.Result = run.Result
	job.Status = project.JobCompleted
	job.Stage = project.StageCompleted
	job.Progress.CurrentStep = project.StageCompleted
	if err := o.store.UpdateJob(ctx, job); err != nil {
		return fmt.Errorf("mark job completed: %w", err)
	}
	if err := o.store.SetVideoStatus(ctx, video.ID, project.VideoCompleted, run.Result); err != nil {
		return err
	}
	if err := o.store.AppendHistory(ctx, project.HistoryEntry{
		VideoID: video.ID, JobID: job.ID,
		From: string(project.JobProcessing), To: string(project.JobCompleted), Stage: project.StageCompleted,
		Message: fmt.Sprintf("version %d published", version),
	}); err != nil {
		return err
	}
	logging.WithContext(ctx, o.logger).Info("job completed",
		logging.String(logging.FieldEventType, "job_complete"),
		logging.String("video_key", run.Result.VideoKey),
		logging.Float64("duration_seconds", run.Result.DurationSeconds),
		logging.Int64("version", version),
	)
	return nil
}

// fail records err against stage. A final attempt makes the job and video
// FAILED; earlier attempts stay PROCESSING for the retry.
func (o *Orchestrator) fail(ctx context.Context, job *project.Job, failed project.Stage, final bool, cause error) error {
	message := stageexec.FailureMessage(cause)
	// Status writes must land even when the attempt was cancelled.
	writeCtx := context.WithoutCancel(ctx)
	logger := logging.WithContext(ctx, o.logger)
	if final {
		if _, err := o.store.MarkJobFailed(writeCtx, job.ID, failed, message); err != nil {
			logger.Error("failed to mark job failed", logging.Error(err))
		}
		return cause
	}
	if job.Stage != project.StageFailed {
		job.Stage = project.StageFailed
		job.FailedStage = failed
		job.Error = message
		if err := o.store.UpdateJob(writeCtx, job); err != nil {
			logger.Error("failed to record attempt failure", logging.Error(err))
		}
	}
	if err := o.store.AppendHistory(writeCtx, project.HistoryEntry{
		VideoID: job.VideoID, JobID: job.ID,
		From: string(project.JobProcessing), To: string(project.JobProcessing), Stage: failed,
		Message: fmt.Sprintf("attempt %d failed: %s", job.Attempts, message),
	}); err != nil {
		logger.Error("failed to append failure history", logging.Error(err))
	}
	return cause
}
