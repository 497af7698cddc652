package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"vidforge/internal/config"
	"vidforge/internal/services"
)

func newKlingServer(t *testing.T, failTask bool) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var polls atomic.Int32
	mux := http.NewServeMux()
	var server *httptest.Server
	mux.HandleFunc("POST /v1/videos/text2video", func(w http.ResponseWriter, r *http.Request) {
		auth := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		parsed, err := jwt.Parse(auth, func(*jwt.Token) (any, error) { return []byte("secret"), nil })
		if err != nil || !parsed.Valid {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"code":1000,"message":"bad token"}`))
			return
		}
		if iss, _ := parsed.Claims.GetIssuer(); iss != "access" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var body klingCreateRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Duration != "10" || body.AspectRatio != "1:1" || body.ModelName != "kling-v2-master" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"code":1201,"message":"bad params"}`))
			return
		}
		_, _ = w.Write([]byte(`{"code":0,"data":{"task_id":"task-1","task_status":"submitted"}}`))
	})
	mux.HandleFunc("GET /v1/videos/text2video/task-1", func(w http.ResponseWriter, r *http.Request) {
		n := polls.Add(1)
		switch {
		case failTask:
			_, _ = w.Write([]byte(`{"code":0,"data":{"task_id":"task-1","task_status":"failed","task_status_msg":"content policy"}}`))
		case n < 2:
			_, _ = w.Write([]byte(`{"code":0,"data":{"task_id":"task-1","task_status":"processing"}}`))
		default:
			_, _ = w.Write([]byte(`{"code":0,"data":{"task_id":"task-1","task_status":"succeed","task_result":{"videos":[{"id":"v1","url":"` + server.URL + `/files/v1.mp4","duration":"10.0"}]}}}`))
		}
	})
	mux.HandleFunc("GET /files/v1.mp4", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("mp4-bytes"))
	})
	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, &polls
}

func newTestKling(t *testing.T, baseURL string) *KlingGenerator {
	t.Helper()
	gen, err := NewKlingGenerator(config.Kling{AccessKey: "access", SecretKey: "secret", BaseURL: baseURL}, nil, WithPollInterval(0))
	if err != nil {
		t.Fatalf("NewKlingGenerator: %v", err)
	}
	return gen
}

func TestKlingGenerateDownloadsClip(t *testing.T) {
	server, polls := newKlingServer(t, false)
	gen := newTestKling(t, server.URL)

	cfg, err := NewRegistry().ValidateConfig("kling-v2-master", map[string]any{"aspectRatio": "1:1", "durationSeconds": 10})
	if err != nil {
		t.Fatalf("ValidateConfig: %v", err)
	}
	out := filepath.Join(t.TempDir(), "scene-001.mp4")
	clip, err := gen.Generate(context.Background(), GenerateRequest{Prompt: "a fox", Config: cfg, OutputPath: out})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil || string(data) != "mp4-bytes" {
		t.Fatalf("unexpected clip contents %q err=%v", data, err)
	}
	if clip.DurationSeconds != 10 || clip.ProviderJobID != "task-1" || polls.Load() != 2 {
		t.Fatalf("unexpected clip %+v after %d polls", clip, polls.Load())
	}
}

func TestKlingDownloadOutlastsAPITimeout(t *testing.T) {
	mux := http.NewServeMux()
	var server *httptest.Server
	mux.HandleFunc("POST /v1/videos/text2video", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":0,"data":{"task_id":"task-1","task_status":"submitted"}}`))
	})
	mux.HandleFunc("GET /v1/videos/text2video/task-1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":0,"data":{"task_id":"task-1","task_status":"succeed","task_result":{"videos":[{"id":"v1","url":"` + server.URL + `/files/v1.mp4","duration":"10.0"}]}}}`))
	})
	mux.HandleFunc("GET /files/v1.mp4", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("mp4-"))
		w.(http.Flusher).Flush()
		time.Sleep(300 * time.Millisecond)
		_, _ = w.Write([]byte("bytes"))
	})
	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)

	gen, err := NewKlingGenerator(config.Kling{AccessKey: "access", SecretKey: "secret", BaseURL: server.URL}, nil,
		WithPollInterval(0), WithHTTPClient(&http.Client{Timeout: 100 * time.Millisecond}))
	if err != nil {
		t.Fatalf("NewKlingGenerator: %v", err)
	}
	cfg, err := NewRegistry().ValidateConfig("kling-v2-master", map[string]any{"aspectRatio": "1:1", "durationSeconds": 10})
	if err != nil {
		t.Fatalf("ValidateConfig: %v", err)
	}
	out := filepath.Join(t.TempDir(), "scene.mp4")
	if _, err := gen.Generate(context.Background(), GenerateRequest{Prompt: "a fox", Config: cfg, OutputPath: out}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if data, err := os.ReadFile(out); err != nil || string(data) != "mp4-bytes" {
		t.Fatalf("unexpected clip contents %q err=%v", data, err)
	}
}

func TestKlingGenerateTaskFailure(t *testing.T) {
	server, _ := newKlingServer(t, true)
	gen := newTestKling(t, server.URL)
	cfg, _ := NewRegistry().ValidateConfig("kling-v2-master", map[string]any{"aspectRatio": "1:1", "durationSeconds": 10})

	out := filepath.Join(t.TempDir(), "scene.mp4")
	_, err := gen.Generate(context.Background(), GenerateRequest{Prompt: "a fox", Config: cfg, OutputPath: out})
	if !errors.Is(err, services.ErrProvider) || !strings.Contains(err.Error(), "content policy") {
		t.Fatalf("expected provider error with task message, got %v", err)
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Fatalf("expected no clip on failure, stat err=%v", statErr)
	}
}

func TestKlingRejectsForeignConfig(t *testing.T) {
	gen := newTestKling(t, "http://127.0.0.1:0")
	_, err := gen.Generate(context.Background(), GenerateRequest{Config: VeoConfig{Model: "veo-2.0"}})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestNewKlingGeneratorRequiresKeys(t *testing.T) {
	if _, err := NewKlingGenerator(config.Kling{AccessKey: "a"}, nil); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
