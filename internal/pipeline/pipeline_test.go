package pipeline_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"vidforge/internal/config"
	"vidforge/internal/media"
	"vidforge/internal/narration"
	"vidforge/internal/pipeline"
	"vidforge/internal/project"
	"vidforge/internal/providers"
	"vidforge/internal/render"
	"vidforge/internal/services"
	"vidforge/internal/staging"
	"vidforge/internal/stitch"
	"vidforge/internal/storage"
	"vidforge/internal/testsupport"
)

type recordingGenerator struct {
	mu      sync.Mutex
	prompts []string
}

func (g *recordingGenerator) Generate(_ context.Context, req providers.GenerateRequest) (providers.Clip, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, req.Prompt)
	g.mu.Unlock()
	if err := os.WriteFile(req.OutputPath, []byte("clip:"+req.Prompt), 0o644); err != nil {
		return providers.Clip{}, err
	}
	return providers.Clip{Path: req.OutputPath, ProviderJobID: "op"}, nil
}

func (g *recordingGenerator) calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.prompts...)
}

type fakeNarrator struct{}

func (fakeNarrator) Synthesize(_ context.Context, req narration.Request) (string, error) {
	return req.OutputPath, os.WriteFile(req.OutputPath, []byte(req.Text), 0o644)
}

// mediaRunner probes every file as five seconds long and makes ffmpeg write
// its output. failOn makes any ffmpeg call whose args contain it fail.
type mediaRunner struct {
	mu     sync.Mutex
	failOn string
	calls  int
}

func (m *mediaRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	m.mu.Lock()
	m.calls++
	failOn := m.failOn
	m.mu.Unlock()
	if name == "ffprobe" {
		return []byte(`{"format":{"duration":"5.000"}}`), nil
	}
	if failOn != "" && strings.Contains(strings.Join(args, " "), failOn) {
		return nil, errors.New("exit status 1")
	}
	return nil, os.WriteFile(args[len(args)-1], []byte(name), 0o644)
}

func (m *mediaRunner) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type harness struct {
	cfg    *config.Config
	store  *project.Store
	gen    *recordingGenerator
	runner *mediaRunner
	orch   *pipeline.Orchestrator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Storage.MusicPrefix = ""
	cfg.Media.TransitionSeconds = 1
	store, _ := testsupport.MustOpenStore(t, cfg)

	gen := &recordingGenerator{}
	registry := providers.NewRegistry()
	registry.SetGenerator(providers.ProviderVeo, gen)

	runner := &mediaRunner{}
	ffmpeg := media.NewFFmpeg("ffmpeg", "ffprobe", runner, nil)
	orch, err := pipeline.New(cfg, pipeline.Dependencies{
		Store:    store,
		Registry: registry,
		Renderer: render.New(fakeNarrator{}, ffmpeg, render.Options{Concurrency: 2}, nil),
		Stitcher: stitch.New(ffmpeg, stitch.Options{CaptionBatch: 4}, nil),
		FFmpeg:   ffmpeg,
		Storage:  storage.NewLocalGateway(cfg.Storage.LocalDir, ""),
	})
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	return &harness{cfg: cfg, store: store, gen: gen, runner: runner, orch: orch}
}

func (h *harness) createVideo(t *testing.T) *project.Video {
	t.Helper()
	video, err := h.store.CreateVideo(context.Background(), &project.Video{
		UserID: "user-1",
		Storyboard: &project.Storyboard{
			Title: "Harbor",
			Scenes: []project.Scene{
				{SceneNumber: 1, Description: "boats at dawn", Voiceover: "The harbor wakes slowly."},
				{SceneNumber: 2, Description: "gulls overhead", Voiceover: "Gulls circle the masts."},
			},
		},
	})
	if err != nil {
		t.Fatalf("CreateVideo: %v", err)
	}
	return video
}

func (h *harness) createJob(t *testing.T, videoID string, jobType project.JobType, params project.JobParams) *project.Job {
	t.Helper()
	job, err := h.store.CreateJob(context.Background(), &project.Job{
		VideoID: videoID,
		UserID:  "user-1",
		Type:    jobType,
		Params:  params,
	})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	return job
}

func (h *harness) objectExists(key string) bool {
	_, err := os.Stat(filepath.Join(h.cfg.Storage.LocalDir, h.cfg.Storage.Bucket, filepath.FromSlash(key)))
	return err == nil
}

func TestProcessCompletesCreateVideo(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	video := h.createVideo(t)
	job := h.createJob(t, video.ID, project.JobCreateVideo, project.JobParams{ProviderModelID: "veo-3.0-fast"})

	outcome, err := h.orch.Process(ctx, job.ID, 1, false)
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if outcome != pipeline.OutcomeCompleted {
		t.Fatalf("outcome = %s, want completed", outcome)
	}

	got, err := h.store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Status != project.JobCompleted || got.Stage != project.StageCompleted {
		t.Fatalf("job = %s/%s, want COMPLETED/COMPLETED", got.Status, got.Stage)
	}
	if got.Progress.Percent != 100 || got.Progress.CompletedSteps != 4 {
		t.Fatalf("progress = %+v, want 4/4 at 100%%", got.Progress)
	}
	if got.Result == nil {
		t.Fatal("expected result on completed job")
	}
	if got.Result.VideoKey != storage.FinalVideoKey(video.ID, job.ID) {
		t.Fatalf("video key = %q", got.Result.VideoKey)
	}
	if got.Result.ThumbnailKey != storage.ThumbnailKey(video.ID, job.ID) {
		t.Fatalf("thumbnail key = %q", got.Result.ThumbnailKey)
	}
	if len(got.Result.Scenes) != 2 {
		t.Fatalf("expected 2 scene results, got %d", len(got.Result.Scenes))
	}
	for _, key := range []string{
		got.Result.VideoKey,
		got.Result.ThumbnailKey,
		storage.SceneVideoKey(video.ID, job.ID, 1),
		storage.SceneAudioKey(video.ID, job.ID, 2),
	} {
		if !h.objectExists(key) {
			t.Fatalf("expected stored object %s", key)
		}
	}

	v, err := h.store.MustGetVideo(ctx, video.ID)
	if err != nil {
		t.Fatalf("MustGetVideo: %v", err)
	}
	if v.Status != project.VideoCompleted {
		t.Fatalf("video status = %s, want COMPLETED", v.Status)
	}
	if v.Version <= video.Version || got.Result.Version != v.Version {
		t.Fatalf("version not bumped: video %d, result %d, created %d", v.Version, got.Result.Version, video.Version)
	}
	scene, _ := v.Storyboard.Scene(1)
	if scene.VideoKey != storage.SceneVideoKey(video.ID, job.ID, 1) || scene.Version != 1 {
		t.Fatalf("scene 1 not updated: %+v", scene)
	}
	if len(h.gen.calls()) != 2 {
		t.Fatalf("expected 2 generator calls, got %v", h.gen.calls())
	}
	if _, err := os.Stat(staging.JobDir(h.cfg.Paths.StagingDir, job.ID)); !os.IsNotExist(err) {
		t.Fatalf("expected workdir removed, stat err = %v", err)
	}
}

func TestProcessFailureRetriesThenBecomesTerminal(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	video := h.createVideo(t)
	job := h.createJob(t, video.ID, project.JobCreateVideo, project.JobParams{})
	h.runner.failOn = "xfade"

	outcome, err := h.orch.Process(ctx, job.ID, 1, false)
	if outcome != pipeline.OutcomeFailed || !errors.Is(err, services.ErrMediaProcessing) {
		t.Fatalf("Process = %s, %v; want failed with media error", outcome, err)
	}
	got, _ := h.store.GetJob(ctx, job.ID)
	if got.Status != project.JobProcessing || got.Stage != project.StageFailed || got.FailedStage != project.StageStitching {
		t.Fatalf("after first attempt job = %s/%s failed at %s", got.Status, got.Stage, got.FailedStage)
	}
	if got.Result != nil {
		t.Fatal("failed attempt must not write a result")
	}
	if got.Error == "" {
		t.Fatal("expected error message on failed attempt")
	}

	if _, err := h.orch.Process(ctx, job.ID, 3, true); err == nil {
		t.Fatal("expected final attempt to fail")
	}
	got, _ = h.store.GetJob(ctx, job.ID)
	if got.Status != project.JobFailed || got.FailedStage != project.StageStitching || got.Result != nil {
		t.Fatalf("after final attempt job = %s failed at %s result %v", got.Status, got.FailedStage, got.Result)
	}
	v, _ := h.store.MustGetVideo(ctx, video.ID)
	if v.Status != project.VideoFailed {
		t.Fatalf("video status = %s, want FAILED", v.Status)
	}

	before := h.runner.count()
	outcome, err = h.orch.Process(ctx, job.ID, 4, true)
	if err != nil || outcome != pipeline.OutcomeSkipped {
		t.Fatalf("redelivery = %s, %v; want skipped", outcome, err)
	}
	if h.runner.count() != before {
		t.Fatal("redelivery of a terminal job must not run media commands")
	}
}

func TestProcessUpdateSceneReusesStoredClips(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	video := h.createVideo(t)
	first := h.createJob(t, video.ID, project.JobCreateVideo, project.JobParams{})
	if _, err := h.orch.Process(ctx, first.ID, 1, false); err != nil {
		t.Fatalf("first job: %v", err)
	}

	// Drop scene 1's stored key so the stitcher must find the clip by prefix.
	v, _ := h.store.MustGetVideo(ctx, video.ID)
	board := *v.Storyboard
	board.Scenes = append([]project.Scene(nil), board.Scenes...)
	board.Scenes[0].VideoKey = ""
	board.Scenes[0].DurationSeconds = 0
	if _, err := h.store.SaveStoryboard(ctx, video.ID, board); err != nil {
		t.Fatalf("SaveStoryboard: %v", err)
	}

	update := h.createJob(t, video.ID, project.JobUpdateScene, project.JobParams{SceneNumber: 2})
	outcome, err := h.orch.Process(ctx, update.ID, 1, false)
	if err != nil || outcome != pipeline.OutcomeCompleted {
		t.Fatalf("update job = %s, %v", outcome, err)
	}
	if calls := h.gen.calls(); len(calls) != 3 || calls[2] != "gulls overhead" {
		t.Fatalf("expected only scene 2 regenerated, prompts = %v", calls)
	}

	got, _ := h.store.GetJob(ctx, update.ID)
	if got.Result == nil || len(got.Result.Scenes) != 2 {
		t.Fatalf("unexpected result: %+v", got.Result)
	}
	if want := storage.SceneVideoKey(video.ID, first.ID, 1); got.Result.Scenes[0].VideoKey != want {
		t.Fatalf("scene 1 key = %q, want reused %q", got.Result.Scenes[0].VideoKey, want)
	}
	if want := storage.SceneVideoKey(video.ID, update.ID, 2); got.Result.Scenes[1].VideoKey != want {
		t.Fatalf("scene 2 key = %q, want %q", got.Result.Scenes[1].VideoKey, want)
	}

	v, _ = h.store.MustGetVideo(ctx, video.ID)
	s1, _ := v.Storyboard.Scene(1)
	s2, _ := v.Storyboard.Scene(2)
	if s1.Version != 1 || s2.Version != 2 {
		t.Fatalf("scene versions = %d, %d; want 1, 2", s1.Version, s2.Version)
	}
}

func TestProcessRejectsIncompatibleConfigBeforeRendering(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	video := h.createVideo(t)
	job := h.createJob(t, video.ID, project.JobCreateVideo, project.JobParams{
		ProviderModelID: "veo-3.0-fast",
		AspectRatio:     "1:1",
	})

	outcome, err := h.orch.Process(ctx, job.ID, 1, true)
	if outcome != pipeline.OutcomeFailed || err == nil {
		t.Fatalf("Process = %s, %v; want failure", outcome, err)
	}
	if len(h.gen.calls()) != 0 {
		t.Fatal("generator must not run for a rejected config")
	}
	got, _ := h.store.GetJob(ctx, job.ID)
	if got.Status != project.JobFailed || got.FailedStage != project.StageQueued {
		t.Fatalf("job = %s failed at %s; want FAILED at QUEUED", got.Status, got.FailedStage)
	}
}

type fixedPlanner struct{ board *project.Storyboard }

func (p fixedPlanner) Plan(context.Context, string, int) (*project.Storyboard, error) {
	return p.board, nil
}

func TestProcessPlansMissingStoryboard(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ffmpeg := media.NewFFmpeg("ffmpeg", "ffprobe", h.runner, nil)
	registry := providers.NewRegistry()
	registry.SetGenerator(providers.ProviderVeo, h.gen)
	orch, err := pipeline.New(h.cfg, pipeline.Dependencies{
		Store:    h.store,
		Registry: registry,
		Renderer: render.New(fakeNarrator{}, ffmpeg, render.Options{}, nil),
		Stitcher: stitch.New(ffmpeg, stitch.Options{}, nil),
		FFmpeg:   ffmpeg,
		Storage:  storage.NewLocalGateway(h.cfg.Storage.LocalDir, ""),
		Planner: fixedPlanner{board: &project.Storyboard{
			Title:  "Planned",
			Scenes: []project.Scene{{SceneNumber: 1, Description: "a lighthouse", Voiceover: "Light turns."}},
		}},
	})
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}

	video, err := h.store.CreateVideo(ctx, &project.Video{UserID: "user-1"})
	if err != nil {
		t.Fatalf("CreateVideo: %v", err)
	}
	job := h.createJob(t, video.ID, project.JobCreateVideo, project.JobParams{StoryIdea: "a night at the coast"})
	if _, err := orch.Process(ctx, job.ID, 1, false); err != nil {
		t.Fatalf("Process: %v", err)
	}
	v, _ := h.store.MustGetVideo(ctx, video.ID)
	if v.Storyboard == nil || v.Storyboard.Title != "Planned" || len(v.Storyboard.Scenes) != 1 {
		t.Fatalf("storyboard not saved: %+v", v.Storyboard)
	}
}

func TestProcessWithoutIdeaOrStoryboardFails(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	video, err := h.store.CreateVideo(ctx, &project.Video{UserID: "user-1"})
	if err != nil {
		t.Fatalf("CreateVideo: %v", err)
	}
	job := h.createJob(t, video.ID, project.JobCreateVideo, project.JobParams{})
	if _, err := h.orch.Process(ctx, job.ID, 1, true); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	got, _ := h.store.GetJob(ctx, job.ID)
	if got.FailedStage != project.StageRenderingScenes {
		t.Fatalf("failed stage = %s, want RENDERING_SCENES", got.FailedStage)
	}
}
