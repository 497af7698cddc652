package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"vidforge/internal/logging"
	"vidforge/internal/media"
	"vidforge/internal/metrics"
	"vidforge/internal/narration"
	"vidforge/internal/project"
	"vidforge/internal/providers"
	"vidforge/internal/services"
)

// DefaultConcurrency bounds scene fan-out when the config leaves it unset.
const DefaultConcurrency = 3

// SceneOutput holds the artifacts of one rendered scene.
type SceneOutput struct {
	SceneNumber      int
	Voiceover        string
	VideoPath        string
	NarrationPath    string
	SyncedPath       string
	ProviderJobID    string
	VideoSeconds     float64
	NarrationSeconds float64
	DurationSeconds  float64
	StretchFactor    float64
}

// Request describes one rendering pass over a set of scenes.
type Request struct {
	Scenes    []project.Scene
	Provider  providers.ProviderID
	Generator providers.Generator
	Config    providers.ModelConfig
	Voice     string
	Workdir   string
}

// Options tunes the renderer.
type Options struct {
	Concurrency int
	FrameRate   int
}

// Renderer generates and syncs scene clips.
type Renderer struct {
	narrator    narration.Synthesizer
	ffmpeg      *media.FFmpeg
	concurrency int
	frameRate   int
	logger      *slog.Logger
}

// New builds a renderer.
func New(narrator narration.Synthesizer, ffmpeg *media.FFmpeg, opts Options, logger *slog.Logger) *Renderer {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.FrameRate <= 0 {
		opts.FrameRate = DefaultFrameRate
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Renderer{
		narrator:    narrator,
		ffmpeg:      ffmpeg,
		concurrency: opts.Concurrency,
		frameRate:   opts.FrameRate,
		logger:      logging.NewComponentLogger(logger, "render"),
	}
}

// Generate produces the raw clip and narration for every scene in req.
// Outputs are ordered by scene number. The first failure cancels the
// remaining scenes.
func (r *Renderer) Generate(ctx context.Context, req Request) ([]SceneOutput, error) {
	if req.Generator == nil {
		return nil, services.Wrap(services.ErrConfiguration, string(project.StageRenderingScenes), "generate", "no generator bound", nil)
	}
	if r.narrator == nil {
		return nil, services.Wrap(services.ErrConfiguration, string(project.StageRenderingScenes), "generate", "no narration synthesizer", nil)
	}
	if len(req.Scenes) == 0 {
		return nil, services.Wrap(services.ErrValidation, string(project.StageRenderingScenes), "generate", "no scenes to render", nil)
	}

	var (
		mu      sync.Mutex
		outputs = make([]SceneOutput, 0, len(req.Scenes))
	)
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(r.concurrency)
	for _, scene := range req.Scenes {
		group.Go(func() error {
			out, err := r.renderScene(groupCtx, req, scene)
			if err != nil {
				return err
			}
			mu.Lock()
			outputs = append(outputs, out)
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	sort.Slice(outputs, func(i, j int) bool { return outputs[i].SceneNumber < outputs[j].SceneNumber })
	return outputs, nil
}

func (r *Renderer) renderScene(ctx context.Context, req Request, scene project.Scene) (SceneOutput, error) {
	out := SceneOutput{
		SceneNumber:   scene.SceneNumber,
		Voiceover:     strings.TrimSpace(scene.Voiceover),
		VideoPath:     filepath.Join(req.Workdir, fmt.Sprintf("scene-%03d.raw.mp4", scene.SceneNumber)),
		NarrationPath: filepath.Join(req.Workdir, fmt.Sprintf("scene-%03d.narration.mp3", scene.SceneNumber)),
	}
	if out.Voiceover == "" {
		out.Voiceover = strings.TrimSpace(scene.Description)
	}
	logger := logging.WithContext(ctx, r.logger).With(logging.Int("scene_number", scene.SceneNumber))

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		started := time.Now()
		clip, err := req.Generator.Generate(groupCtx, providers.GenerateRequest{
			Prompt:     scene.Description,
			Config:     req.Config,
			OutputPath: out.VideoPath,
		})
		metrics.ProviderCall(string(req.Provider), modelID(req.Config), err == nil, time.Since(started))
		if err != nil {
			return classify(err, services.ErrProvider, fmt.Sprintf("scene %d video", scene.SceneNumber))
		}
		out.ProviderJobID = clip.ProviderJobID
		if clip.Path != "" {
			out.VideoPath = clip.Path
		}
		return nil
	})
	group.Go(func() error {
		started := time.Now()
		path, err := r.narrator.Synthesize(groupCtx, narration.Request{
			Text:       out.Voiceover,
			Voice:      req.Voice,
			OutputPath: out.NarrationPath,
		})
		metrics.ProviderCall("narration", req.Voice, err == nil, time.Since(started))
		if err != nil {
			return classify(err, services.ErrProvider, fmt.Sprintf("scene %d narration", scene.SceneNumber))
		}
		if path != "" {
			out.NarrationPath = path
		}
		return nil
	})
	if err := group.Wait(); err != nil {
		logger.Error("scene render failed",
			logging.String(logging.FieldEventType, "scene_render_failed"),
			logging.String(logging.FieldErrorHint, "check provider credentials and quota"),
			logging.Error(err),
		)
		return SceneOutput{}, err
	}
	logger.Info("scene rendered",
		logging.String(logging.FieldEventType, "scene_rendered"),
		logging.String("provider_job_id", out.ProviderJobID),
	)
	return out, nil
}

func modelID(cfg providers.ModelConfig) string {
	if cfg == nil {
		return ""
	}
	return cfg.ModelID()
}

// classify keeps an existing taxonomy marker and otherwise tags err with marker.
func classify(err, marker error, operation string) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if services.Kind(err) != "unknown" {
		return fmt.Errorf("%s: %w", operation, err)
	}
	return services.Wrap(marker, string(project.StageRenderingScenes), operation, "", err)
}
