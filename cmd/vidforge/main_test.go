package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"vidforge/internal/api"
	"vidforge/internal/config"
	"vidforge/internal/project"
	"vidforge/internal/staging"
)

func writeStoryboard(t *testing.T, dir string) string {
	t.Helper()
	board := project.Storyboard{Title: "Harbor", Scenes: []project.Scene{
		{SceneNumber: 1, Description: "boats at dawn", Voiceover: "The harbor wakes."},
		{SceneNumber: 2, Description: "gulls overhead", Voiceover: "Gulls call."},
	}}
	data, err := json.Marshal(board)
	if err != nil {
		t.Fatalf("marshal storyboard: %v", err)
	}
	path := filepath.Join(dir, "board.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write storyboard: %v", err)
	}
	return path
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env.configPath, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, "", "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}
	if _, _, err := runCLI(t, "", "config", "init", "--path", target); err == nil {
		t.Fatal("expected init to refuse overwriting without --overwrite")
	}
}

func TestVideoAndJobCommands(t *testing.T) {
	env := setupCLITestEnv(t)
	boardPath := writeStoryboard(t, env.baseDir)

	video := runJSON[api.Video](t, env.configPath, "video", "create", "--user", "user-1", "--storyboard", boardPath)
	if video.ID == "" || video.Storyboard == nil || len(video.Storyboard.Scenes) != 2 {
		t.Fatalf("unexpected video: %+v", video)
	}

	job := runJSON[api.Job](t, env.configPath, "job", "submit", "--video", video.ID, "--set", "resolution=720p")
	if job.Status != "QUEUED" || job.UserID != "user-1" {
		t.Fatalf("unexpected job: %+v", job)
	}

	out, _, err := runCLI(t, env.configPath, "job", "status", job.ID)
	if err != nil {
		t.Fatalf("job status: %v", err)
	}
	requireContains(t, out, "[WARN] QUEUED")
	requireContains(t, out, "0/4")

	out, _, err = runCLI(t, env.configPath, "job", "list", "--video", video.ID)
	if err != nil {
		t.Fatalf("job list: %v", err)
	}
	requireContains(t, out, job.ID)

	list := runJSON[api.JobListResponse](t, env.configPath, "job", "list", "--status", "completed")
	if len(list.Jobs) != 0 {
		t.Fatalf("expected no completed jobs, got %+v", list.Jobs)
	}

	out, _, err = runCLI(t, env.configPath, "video", "show", video.ID)
	if err != nil {
		t.Fatalf("video show: %v", err)
	}
	requireContains(t, out, "== Harbor ==")
	requireContains(t, out, "gulls overhead")

	if _, _, err := runCLI(t, env.configPath, "job", "submit", "--video", video.ID); err == nil {
		t.Fatal("expected second submission to be rejected while a job is active")
	}
}

func TestJobSubmitRejectsIncompatibleAspect(t *testing.T) {
	env := setupCLITestEnv(t)
	boardPath := writeStoryboard(t, env.baseDir)
	video := runJSON[api.Video](t, env.configPath, "video", "create", "--user", "user-1", "--storyboard", boardPath)

	_, _, err := runCLI(t, env.configPath, "job", "submit", "--video", video.ID, "--aspect", "1:1")
	if err == nil || !strings.Contains(err.Error(), "incompatible") {
		t.Fatalf("expected incompatible capability error, got %v", err)
	}
}

func TestModelsCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, env.configPath, "models")
	if err != nil {
		t.Fatalf("models: %v", err)
	}
	requireContains(t, out, "veo-3.0-fast")
	requireContains(t, out, "16:9")
}

func TestStatusCommandQueriesAdminAPI(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/api/status" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(api.DaemonStatus{
			Running:      true,
			PID:          4242,
			QueueBackend: "sql",
			Workflow: api.WorkflowStatus{
				Running: true, Workers: 2, Busy: 1,
				Queue: map[string]int{"ready": 3, "dead": 1},
				Jobs:  map[string]int{"PROCESSING": 1},
			},
			Dependencies: []api.DependencyStatus{{Name: "FFmpeg", Command: "ffmpeg", Available: true}},
		})
	}))
	defer srv.Close()

	env := setupCLITestEnv(t, func(c *config.Config) {
		c.Paths.APIBind = strings.TrimPrefix(srv.URL, "http://")
		c.Paths.APIToken = "secret"
	})
	out, _, err := runCLI(t, env.configPath, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("expected bearer token, got %q", gotAuth)
	}
	requireContains(t, out, "Running (pid 4242)")
	requireContains(t, out, "1 busy of 2")
	requireContains(t, out, "[WARN] 1")
	requireContains(t, out, "Ready (command: ffmpeg)")
}

func TestStatusCommandWithDisabledAPI(t *testing.T) {
	env := setupCLITestEnv(t, func(c *config.Config) { c.Paths.APIBind = "off" })
	if _, _, err := runCLI(t, env.configPath, "status"); err == nil || !strings.Contains(err.Error(), "disabled") {
		t.Fatalf("expected disabled API error, got %v", err)
	}
}

func TestStagingListAndClean(t *testing.T) {
	env := setupCLITestEnv(t)
	stale := staging.JobDir(env.cfg.Paths.StagingDir, "stale")
	fresh := staging.JobDir(env.cfg.Paths.StagingDir, "fresh")
	for _, dir := range []string{stale, fresh} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}
	old := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	out, _, err := runCLI(t, env.configPath, "staging", "list")
	if err != nil {
		t.Fatalf("staging list: %v", err)
	}
	requireContains(t, out, "Total: 2 directories")

	out, _, err = runCLI(t, env.configPath, "staging", "clean", "--older-than", "1h")
	if err != nil {
		t.Fatalf("staging clean: %v", err)
	}
	requireContains(t, out, "Removed 1 directories")
	if _, err := os.Stat(fresh); err != nil {
		t.Fatalf("fresh workdir should remain: %v", err)
	}
}

func TestLogsCommandFiltersByJob(t *testing.T) {
	env := setupCLITestEnv(t)
	if err := os.MkdirAll(env.cfg.Paths.LogDir, 0o755); err != nil {
		t.Fatalf("mkdir logs: %v", err)
	}
	content := "INFO stage started job_id=job-a\nINFO stage started job_id=job-b\nINFO upload finished job_id=job-a\n"
	if err := os.WriteFile(filepath.Join(env.cfg.Paths.LogDir, "vidforge.log"), []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	out, _, err := runCLI(t, env.configPath, "logs", "--job", "job-a", "-n", "0")
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if strings.Contains(out, "job-b") || strings.Count(out, "job-a") != 2 {
		t.Fatalf("unexpected filtered output:\n%s", out)
	}

	out, _, err = runCLI(t, env.configPath, "logs", "--job", "job-missing")
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireContains(t, out, "No log entries available")
}
