package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"vidforge/internal/config"
	"vidforge/internal/services"
)

func TestKeys(t *testing.T) {
	if got := FinalVideoKey("v1", "j1"); got != "videos/v1/jobs/j1/final.mp4" {
		t.Fatalf("FinalVideoKey = %q", got)
	}
	if got := ThumbnailKey("v1", "j1"); got != "videos/v1/jobs/j1/thumbnail.jpg" {
		t.Fatalf("ThumbnailKey = %q", got)
	}
	if got := SceneVideoKey("v1", "j1", 3); got != "videos/v1/scenes/scene-003/j1.mp4" {
		t.Fatalf("SceneVideoKey = %q", got)
	}
	if got := SceneAudioKey("v1", "j1", 12); !strings.HasPrefix(got, ScenePrefix("v1", 12)) || !strings.HasSuffix(got, ".mp3") {
		t.Fatalf("SceneAudioKey = %q", got)
	}
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLocalGatewayRoundTrip(t *testing.T) {
	ctx := context.Background()
	gw := NewLocalGateway(t.TempDir(), "https://cdn.example.com/")

	url, err := gw.Upload(ctx, writeTemp(t, "final.mp4", "v1"), "videos", FinalVideoKey("vid", "job"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if url != "https://cdn.example.com/videos/videos/vid/jobs/job/final.mp4" {
		t.Fatalf("unexpected url %q", url)
	}
	if _, err := gw.Upload(ctx, writeTemp(t, "final.mp4", "v2"), "videos", FinalVideoKey("vid", "job")); err != nil {
		t.Fatalf("overwrite Upload: %v", err)
	}

	dst := filepath.Join(t.TempDir(), "dl", "final.mp4")
	if _, err := gw.Download(ctx, "videos", FinalVideoKey("vid", "job"), dst); err != nil {
		t.Fatalf("Download: %v", err)
	}
	if data, _ := os.ReadFile(dst); string(data) != "v2" {
		t.Fatalf("expected overwritten content, got %q", data)
	}

	_, err = gw.Download(ctx, "videos", "videos/vid/missing.mp4", dst)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestLocalGatewayFindByExtensionPicksNewest(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	gw := NewLocalGateway(root, "")

	if _, found, err := gw.FindByExtension(ctx, "videos", ScenePrefix("vid", 2), ".mp4"); err != nil || found {
		t.Fatalf("expected nothing in empty prefix, found=%v err=%v", found, err)
	}

	oldKey := SceneVideoKey("vid", "job-a", 2)
	newKey := SceneVideoKey("vid", "job-b", 2)
	for _, key := range []string{oldKey, newKey, SceneAudioKey("vid", "job-c", 2)} {
		if _, err := gw.Upload(ctx, writeTemp(t, "x", key), "videos", key); err != nil {
			t.Fatalf("Upload %s: %v", key, err)
		}
	}
	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(filepath.Join(root, "videos", oldKey), past, past); err != nil {
		t.Fatal(err)
	}

	key, found, err := gw.FindByExtension(ctx, "videos", ScenePrefix("vid", 2), "mp4")
	if err != nil || !found || key != newKey {
		t.Fatalf("FindByExtension = %q %v %v, want %q", key, found, err, newKey)
	}
}

func TestLocalGatewayRejectsTraversal(t *testing.T) {
	gw := NewLocalGateway(t.TempDir(), "")
	if _, err := gw.Upload(context.Background(), writeTemp(t, "a", "x"), "videos", "../../etc/passwd"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestNewSelectsBackend(t *testing.T) {
	gw, err := New(config.Storage{Backend: "local", LocalDir: t.TempDir()}, nil)
	if err != nil {
		t.Fatalf("New local: %v", err)
	}
	if err := gw.Ping(context.Background(), "videos"); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if _, err := New(config.Storage{Backend: "supabase"}, nil); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	supa, err := New(config.Storage{Backend: "supabase", SupabaseURL: "https://proj.supabase.co/", SupabaseKey: "k"}, nil)
	if err != nil {
		t.Fatalf("New supabase: %v", err)
	}
	if got := supa.PublicURL("videos", "a/b.mp4"); got != "https://proj.supabase.co/storage/v1/object/public/videos/a/b.mp4" {
		t.Fatalf("unexpected public url %q", got)
	}
}
