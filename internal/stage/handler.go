package stage

import (
	"context"

	"vidforge/internal/project"
	"vidforge/internal/providers"
	"vidforge/internal/render"
	"vidforge/internal/staging"
)

// Handler describes the contract the orchestrator needs from each stage.
type Handler interface {
	Prepare(context.Context, *Run) error
	Execute(context.Context, *Run) error
	HealthCheck(context.Context) Health
}

// Run is the state one job attempt carries from stage to stage.
type Run struct {
	Job     *project.Job
	Video   *project.Video
	Attempt int
	// Final is set on the last attempt the retry policy allows.
	Final   bool
	Workdir *staging.Workdir

	ModelID   string
	Provider  providers.ProviderID
	Config    providers.ModelConfig
	Generator providers.Generator
	Voice     string

	// Targets are the scene numbers rendered by this job.
	Targets []int
	// Rendered holds the newly rendered scenes, synced after
	// SYNTHESIZING_AUDIO.
	Rendered []render.SceneOutput
	// Clips holds every scene of the final cut in order.
	Clips []SceneClip

	MusicPath     string
	FinalPath     string
	FinalSeconds  float64
	ThumbnailPath string
	Result        *project.Result
}

// SceneClip is one synced scene ready for stitching. Reused scenes have no
// local narration and carry the keys already in storage.
type SceneClip struct {
	SceneNumber      int
	Voiceover        string
	Path             string
	NarrationPath    string
	DurationSeconds  float64
	NarrationSeconds float64
	Reused           bool
	VideoKey         string
	AudioKey         string
}
