package staging

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"vidforge/internal/logging"
)

func TestCleanStaleInvalidPaths(t *testing.T) {
	for _, dir := range []string{"", "   ", "/nonexistent/path/12345"} {
		result := CleanStale(context.Background(), dir, time.Hour, logging.NewNop())
		if len(result.Removed) != 0 || len(result.Errors) != 0 {
			t.Errorf("expected empty result for path %q", dir)
		}
	}
}

func TestCleanStaleRemovesOldJobDirs(t *testing.T) {
	root := t.TempDir()
	old := time.Now().Add(-2 * time.Hour)

	oldJob := JobDir(root, "old")
	recentJob := JobDir(root, "recent")
	foreign := filepath.Join(root, "music-cache")
	for _, dir := range []string{oldJob, recentJob, foreign} {
		if err := os.Mkdir(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}
	for _, dir := range []string{oldJob, foreign} {
		if err := os.Chtimes(dir, old, old); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}

	result := CleanStale(context.Background(), root, time.Hour, logging.NewNop())
	if len(result.Removed) != 1 || result.Removed[0] != oldJob {
		t.Fatalf("expected only %s removed, got %v", oldJob, result.Removed)
	}
	for _, dir := range []string{recentJob, foreign} {
		if _, err := os.Stat(dir); err != nil {
			t.Fatalf("expected %s kept: %v", dir, err)
		}
	}
}

func TestAcquireStartsClean(t *testing.T) {
	root := t.TempDir()
	first, err := Acquire(root, "abc")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := os.WriteFile(first.File("leftover.mp4"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	second, err := Acquire(root, "abc")
	if err != nil {
		t.Fatalf("Acquire again: %v", err)
	}
	if _, err := os.Stat(second.File("leftover.mp4")); !os.IsNotExist(err) {
		t.Fatalf("expected leftover removed, stat err=%v", err)
	}
	if err := second.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := os.Stat(second.Path); !os.IsNotExist(err) {
		t.Fatalf("expected workdir removed, stat err=%v", err)
	}
	if _, err := Acquire(root, "../escape"); err == nil {
		t.Fatal("expected path separators in job id to be rejected")
	}
}

func TestListDirectoriesReportsSize(t *testing.T) {
	root := t.TempDir()
	dir := JobDir(root, "sized")
	if err := os.MkdirAll(filepath.Join(dir, "nested"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "nested", "clip.mp4"), make([]byte, 128), 0o644); err != nil {
		t.Fatal(err)
	}
	dirs, err := ListDirectories(root)
	if err != nil {
		t.Fatalf("ListDirectories: %v", err)
	}
	if len(dirs) != 1 || dirs[0].Size != 128 || dirs[0].Name != "job-sized" {
		t.Fatalf("unexpected listing: %+v", dirs)
	}
}
