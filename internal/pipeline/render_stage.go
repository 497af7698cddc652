package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"vidforge/internal/config"
	"vidforge/internal/logging"
	"vidforge/internal/project"
	"vidforge/internal/render"
	"vidforge/internal/services"
	"vidforge/internal/stage"
	"vidforge/internal/storyboard"
)

// renderStage handles RENDERING_SCENES.
type renderStage struct {
	cfg      *config.Config
	store    *project.Store
	renderer *render.Renderer
	planner  storyboard.Planner
	logger   *slog.Logger
}

func (s *renderStage) Prepare(ctx context.Context, run *stage.Run) error {
	if err := s.ensureStoryboard(ctx, run); err != nil {
		return err
	}
	board := run.Storyboard()
	switch run.Job.Type {
	case project.JobUpdateScene:
		n := run.Job.Params.SceneNumber
		if _, ok := board.Scene(n); !ok {
			return services.Wrap(services.ErrNotFound, string(project.StageRenderingScenes), "select scenes",
				fmt.Sprintf("scene %d not in storyboard of %d scenes", n, len(board.Scenes)), nil)
		}
		run.Targets = []int{n}
	default:
		run.Targets = make([]int, 0, len(board.Scenes))
		for _, scene := range board.Scenes {
			run.Targets = append(run.Targets, scene.SceneNumber)
		}
	}
	return nil
}

// ensureStoryboard plans a storyboard for CREATE_VIDEO jobs whose video
// has none and saves it before any scene is rendered.
func (s *renderStage) ensureStoryboard(ctx context.Context, run *stage.Run) error {
	if board := run.Storyboard(); board != nil && len(board.Scenes) > 0 {
		return project.ValidateScenes(board.Scenes)
	}
	if run.Job.Type != project.JobCreateVideo {
		return services.Wrap(services.ErrValidation, string(project.StageRenderingScenes), "load storyboard",
			fmt.Sprintf("%s requires an existing storyboard", run.Job.Type), nil)
	}
	idea := strings.TrimSpace(run.Job.Params.StoryIdea)
	if idea == "" {
		return services.Wrap(services.ErrValidation, string(project.StageRenderingScenes), "plan storyboard",
			"video has no storyboard and the job has no story idea", nil)
	}
	if s.planner == nil {
		return services.Wrap(services.ErrConfiguration, string(project.StageRenderingScenes), "plan storyboard",
			"storyboard planner is disabled", nil)
	}
	maxScenes := run.Job.Params.MaxScenes
	if maxScenes <= 0 {
		maxScenes = s.cfg.Storyboard.MaxScenes
	}
	board, err := s.planner.Plan(ctx, idea, maxScenes)
	if err != nil {
		return err
	}
	version, err := s.store.SaveStoryboard(ctx, run.Video.ID, *board)
	if err != nil {
		return err
	}
	run.Video.Storyboard = board
	run.Video.Version = version
	logging.WithContext(ctx, s.logger).Info("storyboard planned",
		logging.String(logging.FieldEventType, "storyboard_planned"),
		logging.String("title", board.Title),
		logging.Int("scene_count", len(board.Scenes)),
		logging.Int64("version", version),
	)
	return nil
}

func (s *renderStage) Execute(ctx context.Context, run *stage.Run) error {
	outputs, err := s.renderer.Generate(ctx, render.Request{
		Scenes:    run.TargetScenes(),
		Provider:  run.Provider,
		Generator: run.Generator,
		Config:    run.Config,
		Voice:     run.Voice,
		Workdir:   run.Workdir.Path,
	})
	if err != nil {
		return err
	}
	run.Rendered = outputs
	return nil
}

func (s *renderStage) HealthCheck(context.Context) stage.Health {
	const name = "scene rendering"
	if s.renderer == nil {
		return stage.Unhealthy(name, "renderer not configured")
	}
	if s.planner == nil {
		return stage.Health{Name: name, Ready: true, Detail: "storyboard planner disabled"}
	}
	return stage.Healthy(name)
}

// syncStage handles SYNTHESIZING_AUDIO.
type syncStage struct {
	renderer *render.Renderer
}

func (s *syncStage) Prepare(_ context.Context, run *stage.Run) error {
	if len(run.Rendered) == 0 {
		return services.Wrap(services.ErrValidation, string(project.StageSynthesizingAudio), "sync scenes", "no rendered scenes", nil)
	}
	return nil
}

func (s *syncStage) Execute(ctx context.Context, run *stage.Run) error {
	return s.renderer.SyncAll(ctx, run.Workdir.Path, run.Rendered)
}

func (s *syncStage) HealthCheck(context.Context) stage.Health {
	if s.renderer == nil {
		return stage.Unhealthy("audio sync", "renderer not configured")
	}
	return stage.Healthy("audio sync")
}
