package storyboard

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"vidforge/internal/config"
	"vidforge/internal/services"
)

type genaiText struct {
	client *genai.Client
}

func (g genaiText) GenerateJSON(ctx context.Context, model, system, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, model,
		[]*genai.Content{{Role: genai.RoleUser, Parts: []*genai.Part{{Text: prompt}}}},
		&genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: system}}},
			ResponseMIMEType:  "application/json",
			Temperature:       genai.Ptr[float32](0.7),
		},
	)
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty response from %s", model)
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}

// NewGeminiPlanner connects a genai client with the Veo API key, which is
// also a Gemini API key.
func NewGeminiPlanner(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*ModelPlanner, error) {
	if strings.TrimSpace(cfg.Providers.Veo.APIKey) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "", "storyboard planner", "gemini api key required", nil)
	}
	clientCfg := &genai.ClientConfig{APIKey: cfg.Providers.Veo.APIKey, Backend: genai.BackendGeminiAPI}
	if cfg.Providers.Veo.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.Providers.Veo.BaseURL}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "", "storyboard planner", "create genai client", err)
	}
	return newPlanner(genaiText{client: client}, "gemini", cfg.Storyboard.Model, cfg.Storyboard.MaxScenes, logger), nil
}
