package api

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"vidforge/internal/config"
	"vidforge/internal/logging"
	"vidforge/internal/pipeline"
	"vidforge/internal/project"
	"vidforge/internal/providers"
	"vidforge/internal/queue"
	"vidforge/internal/services"
)

// Enqueuer publishes job messages.
type Enqueuer interface {
	Enqueue(ctx context.Context, payload queue.Payload) (string, error)
}

// JobService submits and queries jobs and videos.
type JobService struct {
	cfg      *config.Config
	store    *project.Store
	queue    Enqueuer
	registry *providers.Registry
	logger   *slog.Logger
}

// NewJobService constructs a JobService.
func NewJobService(cfg *config.Config, store *project.Store, q Enqueuer, registry *providers.Registry, logger *slog.Logger) *JobService {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &JobService{
		cfg:      cfg,
		store:    store,
		queue:    q,
		registry: registry,
		logger:   logging.NewComponentLogger(logger, "api"),
	}
}

// Submit validates req, creates a QUEUED job and enqueues it.
func (s *JobService) Submit(ctx context.Context, req SubmitRequest) (*Job, error) {
	jobType := project.JobType(strings.ToUpper(strings.TrimSpace(req.Type)))
	if jobType == "" {
		jobType = project.JobCreateVideo
	}
	verr := &services.ValidationError{Subject: "job"}
	if strings.TrimSpace(req.VideoID) == "" {
		verr.Add("videoId", "is required")
	}
	if !jobType.Valid() {
		verr.Add("type", fmt.Sprintf("unknown job type %q", req.Type))
	}
	if req.MaxScenes < 0 {
		verr.Add("maxScenes", "must not be negative")
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}

	video, err := s.store.GetVideo(ctx, req.VideoID)
	if err != nil {
		return nil, err
	}
	if video == nil {
		return nil, services.Wrap(services.ErrNotFound, "", "submit job", fmt.Sprintf("video %s", req.VideoID), nil)
	}
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		userID = video.UserID
	} else if userID != video.UserID {
		return nil, services.Wrap(services.ErrValidation, "", "submit job", "video belongs to another user", nil)
	}

	params := project.JobParams{
		ProviderModelID: strings.TrimSpace(req.ProviderModelID),
		ProviderConfig:  req.ProviderConfig,
		AspectRatio:     strings.TrimSpace(req.AspectRatio),
		DurationSeconds: req.DurationSeconds,
		VoiceID:         strings.TrimSpace(req.VoiceID),
		MaxScenes:       req.MaxScenes,
		StoryIdea:       queue.Payload{StoryIdea: req.StoryIdea, Concept: req.Concept}.Idea(),
		SceneNumber:     req.SceneNumber,
		MusicKey:        strings.TrimSpace(req.MusicKey),
	}
	if params.ProviderModelID == "" {
		params.ProviderModelID = s.cfg.Providers.DefaultModel
	}
	if err := s.validateProvider(params); err != nil {
		return nil, err
	}
	if err := validateStoryboard(jobType, params, video); err != nil {
		return nil, err
	}

	job, err := s.store.CreateJob(ctx, &project.Job{
		VideoID: video.ID,
		UserID:  userID,
		Type:    jobType,
		Params:  params,
	})
	if err != nil {
		return nil, err
	}
	ctx = services.WithVideoID(services.WithJobID(ctx, job.ID), video.ID)
	logger := logging.WithContext(ctx, s.logger)
	if err := s.store.AppendHistory(ctx, project.HistoryEntry{
		VideoID: video.ID, JobID: job.ID,
		To: string(project.JobQueued), Stage: project.StageQueued,
		Message: fmt.Sprintf("%s submitted with %s", jobType, params.ProviderModelID),
	}); err != nil {
		s.releaseSlot(ctx, logger, job.ID, "record submission failed: "+err.Error())
		return nil, err
	}

	if _, err := s.queue.Enqueue(ctx, queue.Payload{
		JobID:           job.ID,
		VideoID:         video.ID,
		UserID:          userID,
		StoryIdea:       params.StoryIdea,
		MaxScenes:       params.MaxScenes,
		VoiceID:         params.VoiceID,
		ProviderModelID: params.ProviderModelID,
	}); err != nil {
		s.releaseSlot(ctx, logger, job.ID, "enqueue failed: "+err.Error())
		logging.ErrorWithContext(logger, "job enqueue failed", "job_enqueue_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check queue backend access"),
		)
		return nil, services.Wrap(services.ErrTransient, "", "enqueue job", job.ID, err)
	}

	logger.Info("job submitted",
		logging.String(logging.FieldEventType, "job_submitted"),
		logging.String("type", string(jobType)),
		logging.String("model", params.ProviderModelID),
	)
	dto := FromJob(job)
	return &dto, nil
}

// releaseSlot fails a job that never reached the queue so its video can
// take another submission.
func (s *JobService) releaseSlot(ctx context.Context, logger *slog.Logger, jobID, message string) {
	if _, err := s.store.MarkJobFailed(context.WithoutCancel(ctx), jobID, project.StageQueued, message); err != nil {
		logger.Error("failed to release job slot", logging.Error(err))
	}
}

// validateProvider rejects configs the worker would refuse, before the job
// takes the video's active slot.
func (s *JobService) validateProvider(params project.JobParams) error {
	spec, err := s.registry.GetModel(params.ProviderModelID)
	if err != nil {
		return err
	}
	modelCfg, err := s.registry.ValidateConfig(spec.ID(), pipeline.ProviderValues(params, spec, s.cfg.Providers.DefaultAspectRatio))
	if err != nil {
		return err
	}
	return s.registry.CheckCompatibility(spec.ID(), modelCfg.Aspect(), modelCfg.Duration())
}

func validateStoryboard(jobType project.JobType, params project.JobParams, video *project.Video) error {
	board := video.Storyboard
	hasScenes := board != nil && len(board.Scenes) > 0
	switch jobType {
	case project.JobCreateVideo:
		if !hasScenes && params.StoryIdea == "" {
			return services.Wrap(services.ErrValidation, "", "submit job", "video has no storyboard; storyIdea is required", nil)
		}
	case project.JobRegenerateVideo:
		if !hasScenes {
			return services.Wrap(services.ErrValidation, "", "submit job", "video has no storyboard to regenerate", nil)
		}
	case project.JobUpdateScene:
		if !hasScenes {
			return services.Wrap(services.ErrValidation, "", "submit job", "video has no storyboard", nil)
		}
		if _, ok := board.Scene(params.SceneNumber); !ok {
			return services.Wrap(services.ErrValidation, "", "submit job",
				fmt.Sprintf("scene %d not in storyboard of %d scenes", params.SceneNumber, len(board.Scenes)), nil)
		}
	}
	return nil
}

// Status returns the polling payload for a job.
func (s *JobService) Status(ctx context.Context, jobID string) (*JobStatus, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	status := StatusOf(job)
	return &status, nil
}

// Describe returns the full job record.
func (s *JobService) Describe(ctx context.Context, jobID string) (*Job, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	dto := FromJob(job)
	return &dto, nil
}

func (s *JobService) getJob(ctx context.Context, jobID string) (*project.Job, error) {
	job, err := s.store.GetJob(ctx, strings.TrimSpace(jobID))
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, services.Wrap(services.ErrNotFound, "", "get job", fmt.Sprintf("job %s", jobID), nil)
	}
	return job, nil
}

// List returns jobs matching filter, newest first.
func (s *JobService) List(ctx context.Context, filter project.JobFilter) ([]Job, error) {
	jobs, err := s.store.ListJobs(ctx, filter)
	if err != nil {
		return nil, err
	}
	return FromJobs(jobs), nil
}

// CreateVideo inserts a draft video.
func (s *JobService) CreateVideo(ctx context.Context, req CreateVideoRequest) (*Video, error) {
	video := &project.Video{
		UserID:     strings.TrimSpace(req.UserID),
		Visibility: project.Visibility(strings.ToLower(strings.TrimSpace(req.Visibility))),
		Storyboard: req.Storyboard,
	}
	switch video.Visibility {
	case "", project.VisibilityPrivate, project.VisibilityUnlisted, project.VisibilityPublic:
	default:
		return nil, services.Wrap(services.ErrValidation, "", "create video", fmt.Sprintf("unknown visibility %q", req.Visibility), nil)
	}
	created, err := s.store.CreateVideo(ctx, video)
	if err != nil {
		return nil, err
	}
	dto := FromVideo(created)
	return &dto, nil
}

// GetVideo returns a video by id.
func (s *JobService) GetVideo(ctx context.Context, id string) (*Video, error) {
	video, err := s.store.GetVideo(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	if video == nil {
		return nil, services.Wrap(services.ErrNotFound, "", "get video", fmt.Sprintf("video %s", id), nil)
	}
	dto := FromVideo(video)
	return &dto, nil
}

// Models lists every registered model.
func (s *JobService) Models() []Model {
	specs := s.registry.Models()
	out := make([]Model, 0, len(specs))
	for _, spec := range specs {
		out = append(out, FromModel(spec, s.registry.Configured(spec.Provider())))
	}
	return out
}
