package storyboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openai/openai-go/v2/option"

	"vidforge/internal/config"
	"vidforge/internal/services"
)

func TestOpenAIPlannerSendsJSONChatRequest(t *testing.T) {
	var got struct {
		Model          string `json:"model"`
		ResponseFormat struct {
			Type string `json:"type"`
		} `json:"response_format"`
		Messages []struct {
			Role string `json:"role"`
		} `json:"messages"`
	}
	var referer, title, auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		referer, title, auth = r.Header.Get("HTTP-Referer"), r.Header.Get("X-Title"), r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		content := `{"title":"Orchard","scenes":[{"sceneNumber":1,"description":"apples fall","voiceover":"Autumn arrives."}]}`
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "cmpl-1",
			"object":  "chat.completion",
			"created": 0,
			"model":   "story-model",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
		})
	}))
	defer srv.Close()

	planner, err := NewOpenAIPlanner(config.Storyboard{
		APIKey:    "sk-test",
		BaseURL:   srv.URL,
		Model:     "story-model",
		MaxScenes: 4,
		Referer:   "https://vidforge.example",
		Title:     "vidforge",
	}, nil, option.WithMaxRetries(0))
	if err != nil {
		t.Fatalf("NewOpenAIPlanner: %v", err)
	}
	board, err := planner.Plan(context.Background(), "an orchard in autumn", 0)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if board.Title != "Orchard" || len(board.Scenes) != 1 {
		t.Fatalf("unexpected board: %+v", board)
	}
	if got.Model != "story-model" || got.ResponseFormat.Type != "json_object" {
		t.Fatalf("unexpected request: %+v", got)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Role != "user" {
		t.Fatalf("unexpected messages: %+v", got.Messages)
	}
	if auth != "Bearer sk-test" || referer != "https://vidforge.example" || title != "vidforge" {
		t.Fatalf("unexpected headers auth=%q referer=%q title=%q", auth, referer, title)
	}
}

func TestOpenAIPlannerRequiresKey(t *testing.T) {
	if _, err := NewOpenAIPlanner(config.Storyboard{Model: "m"}, nil); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestNewFromConfigRejectsUnknownBackend(t *testing.T) {
	cfg := &config.Config{Storyboard: config.Storyboard{Backend: "llama"}}
	if _, err := NewFromConfig(context.Background(), cfg, nil); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
