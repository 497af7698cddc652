package storyboard

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"vidforge/internal/config"
	"vidforge/internal/logging"
	"vidforge/internal/project"
	"vidforge/internal/services"
)

// DefaultMaxScenes caps planner output when the caller gives no limit.
const DefaultMaxScenes = 5

const systemPrompt = `You are a storyboard writer for short narrated videos.
Respond with JSON only, matching:
{"title": string, "tags": [string], "musicDescription": string,
 "scenes": [{"sceneNumber": int, "description": string, "voiceover": string}]}
"description" is a visual prompt for a text-to-video model: one shot, concrete
subjects, setting, lighting and camera movement, no on-screen text.
"voiceover" is one or two spoken sentences that take at most eight seconds to read.`

// Planner produces a storyboard for a story idea.
type Planner interface {
	Plan(ctx context.Context, idea string, maxScenes int) (*project.Storyboard, error)
}

// textModel produces a JSON completion for a system and user prompt.
type textModel interface {
	GenerateJSON(ctx context.Context, model, system, prompt string) (string, error)
}

// ModelPlanner plans storyboards with a JSON-capable text model.
type ModelPlanner struct {
	text      textModel
	backend   string
	model     string
	maxScenes int
	logger    *slog.Logger
}

// NewFromConfig builds the planner selected by cfg.Storyboard.Backend.
func NewFromConfig(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*ModelPlanner, error) {
	switch cfg.Storyboard.Backend {
	case "", "gemini":
		return NewGeminiPlanner(ctx, cfg, logger)
	case "openai":
		return NewOpenAIPlanner(cfg.Storyboard, logger)
	default:
		return nil, services.Wrap(services.ErrConfiguration, "", "storyboard planner",
			fmt.Sprintf("unsupported backend %q", cfg.Storyboard.Backend), nil)
	}
}

func newPlanner(text textModel, backend, model string, maxScenes int, logger *slog.Logger) *ModelPlanner {
	if logger == nil {
		logger = logging.NewNop()
	}
	if maxScenes <= 0 {
		maxScenes = DefaultMaxScenes
	}
	return &ModelPlanner{
		text:      text,
		backend:   backend,
		model:     model,
		maxScenes: maxScenes,
		logger:    logging.NewComponentLogger(logger, "storyboard"),
	}
}

// Plan asks the model for at most maxScenes scenes. maxScenes <= 0 or above
// the configured cap uses the cap.
func (p *ModelPlanner) Plan(ctx context.Context, idea string, maxScenes int) (*project.Storyboard, error) {
	idea = strings.TrimSpace(idea)
	if idea == "" {
		return nil, services.Wrap(services.ErrValidation, "", "plan storyboard", "story idea is empty", nil)
	}
	if maxScenes <= 0 || maxScenes > p.maxScenes {
		maxScenes = p.maxScenes
	}
	prompt := fmt.Sprintf("Story idea: %s\nWrite between 1 and %d scenes.", idea, maxScenes)

	raw, err := p.text.GenerateJSON(ctx, p.model, systemPrompt, prompt)
	if err != nil {
		return nil, services.Wrap(services.ErrProvider, "", "plan storyboard", "generate storyboard", err)
	}
	var board project.Storyboard
	if err := decodeJSON(raw, &board); err != nil {
		return nil, services.Wrap(services.ErrProvider, "", "plan storyboard", "parse storyboard", err)
	}
	normalized, err := Normalize(board, maxScenes)
	if err != nil {
		return nil, services.Wrap(services.ErrProvider, "", "plan storyboard", "unusable storyboard", err)
	}
	logging.WithContext(ctx, p.logger).Info("storyboard planned",
		logging.String("backend", p.backend),
		logging.String("model", p.model),
		logging.String("title", normalized.Title),
		logging.Int("scene_count", len(normalized.Scenes)),
	)
	return normalized, nil
}
