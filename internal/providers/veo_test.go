package providers

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"google.golang.org/genai"

	"vidforge/internal/services"
)

type fakeVeo struct {
	model     string
	config    *genai.GenerateVideosConfig
	pollsLeft int
	result    *genai.GenerateVideosResponse
	download  []byte
}

func (f *fakeVeo) GenerateVideos(_ context.Context, model, _ string, cfg *genai.GenerateVideosConfig) (*genai.GenerateVideosOperation, error) {
	f.model = model
	f.config = cfg
	return &genai.GenerateVideosOperation{Name: "operations/1"}, nil
}

func (f *fakeVeo) Poll(_ context.Context, op *genai.GenerateVideosOperation) (*genai.GenerateVideosOperation, error) {
	f.pollsLeft--
	if f.pollsLeft > 0 {
		return op, nil
	}
	return &genai.GenerateVideosOperation{Name: op.Name, Done: true, Response: f.result}, nil
}

func (f *fakeVeo) Download(context.Context, *genai.GeneratedVideo) ([]byte, error) {
	return f.download, nil
}

func TestVeoGenerateMapsConfigAndDownloads(t *testing.T) {
	api := &fakeVeo{
		pollsLeft: 2,
		result:    &genai.GenerateVideosResponse{GeneratedVideos: []*genai.GeneratedVideo{{Video: &genai.Video{URI: "files/abc"}}}},
		download:  []byte("veo-bytes"),
	}
	gen := newVeoGenerator(api, time.Millisecond, nil)
	cfg, err := NewRegistry().ValidateConfig("veo-3.0-fast", map[string]any{"aspectRatio": "9:16", "durationSeconds": 6})
	if err != nil {
		t.Fatalf("ValidateConfig: %v", err)
	}

	out := filepath.Join(t.TempDir(), "clip.mp4")
	clip, err := gen.Generate(context.Background(), GenerateRequest{Prompt: "waves", Config: cfg, OutputPath: out})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if api.model != "veo-3.0-fast-generate-001" {
		t.Fatalf("unexpected api model %q", api.model)
	}
	if api.config.AspectRatio != "9:16" || api.config.DurationSeconds == nil || *api.config.DurationSeconds != 6 || api.config.NumberOfVideos != 1 {
		t.Fatalf("unexpected genai config %+v", api.config)
	}
	if data, _ := os.ReadFile(out); string(data) != "veo-bytes" {
		t.Fatalf("unexpected clip contents %q", data)
	}
	if clip.ProviderJobID != "operations/1" {
		t.Fatalf("unexpected clip %+v", clip)
	}
}

func TestVeoGenerateFilteredResponse(t *testing.T) {
	api := &fakeVeo{
		pollsLeft: 1,
		result:    &genai.GenerateVideosResponse{RAIMediaFilteredReasons: []string{"unsafe"}},
	}
	gen := newVeoGenerator(api, time.Millisecond, nil)
	cfg, _ := NewRegistry().ValidateConfig("veo-2.0", nil)
	_, err := gen.Generate(context.Background(), GenerateRequest{Prompt: "x", Config: cfg, OutputPath: filepath.Join(t.TempDir(), "c.mp4")})
	if !errors.Is(err, services.ErrProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}
}
