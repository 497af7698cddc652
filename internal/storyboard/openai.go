package storyboard

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"

	"vidforge/internal/config"
	"vidforge/internal/services"
)

const (
	openAITimeout    = 90 * time.Second
	openAIMaxRetries = 3
)

type chatText struct {
	client openai.Client
}

func (c chatText) GenerateJSON(ctx context.Context, model, system, prompt string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(0.7),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		return "", err
	}
	for _, choice := range resp.Choices {
		if content := strings.TrimSpace(choice.Message.Content); content != "" {
			return content, nil
		}
		if refusal := strings.TrimSpace(choice.Message.Refusal); refusal != "" {
			return "", fmt.Errorf("model refused: %s", refusal)
		}
	}
	finish := ""
	if len(resp.Choices) > 0 {
		finish = resp.Choices[0].FinishReason
	}
	return "", fmt.Errorf("empty completion from %s (finish_reason=%q)", model, finish)
}

// NewOpenAIPlanner plans with an OpenAI-compatible chat completions API.
// Referer and Title are sent as the attribution headers OpenRouter reads.
// Extra request options are appended after the config-derived ones.
func NewOpenAIPlanner(cfg config.Storyboard, logger *slog.Logger, opts ...option.RequestOption) (*ModelPlanner, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "", "storyboard planner", "openai api key required", nil)
	}
	base := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithRequestTimeout(openAITimeout),
		option.WithMaxRetries(openAIMaxRetries),
	}
	if cfg.BaseURL != "" {
		base = append(base, option.WithBaseURL(cfg.BaseURL))
	}
	if referer := strings.TrimSpace(cfg.Referer); referer != "" {
		base = append(base, option.WithHeader("HTTP-Referer", referer))
	}
	if title := strings.TrimSpace(cfg.Title); title != "" {
		base = append(base, option.WithHeader("X-Title", title))
	}
	client := openai.NewClient(append(base, opts...)...)
	return newPlanner(chatText{client: client}, "openai", cfg.Model, cfg.MaxScenes, logger), nil
}
