package api

import (
	"context"
	"errors"
	"testing"

	"vidforge/internal/config"
	"vidforge/internal/project"
	"vidforge/internal/providers"
	"vidforge/internal/queue"
	"vidforge/internal/services"
	"vidforge/internal/testsupport"
)

type fakeEnqueuer struct {
	payloads []queue.Payload
	err      error
}

func (f *fakeEnqueuer) Enqueue(_ context.Context, payload queue.Payload) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.payloads = append(f.payloads, payload)
	return "msg-1", nil
}

type nopGenerator struct{}

func (nopGenerator) Generate(context.Context, providers.GenerateRequest) (providers.Clip, error) {
	return providers.Clip{}, nil
}

func newTestService(t *testing.T) (*JobService, *project.Store, *fakeEnqueuer, *config.Config) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store, _ := testsupport.MustOpenStore(t, cfg)
	registry := providers.NewRegistry()
	registry.SetGenerator(providers.ProviderVeo, nopGenerator{})
	q := &fakeEnqueuer{}
	return NewJobService(cfg, store, q, registry, nil), store, q, cfg
}

func createVideo(t *testing.T, svc *JobService, board *project.Storyboard) *Video {
	t.Helper()
	video, err := svc.CreateVideo(context.Background(), CreateVideoRequest{UserID: "user-1", Storyboard: board})
	if err != nil {
		t.Fatalf("CreateVideo: %v", err)
	}
	return video
}

func twoScenes() *project.Storyboard {
	return &project.Storyboard{Title: "Harbor", Scenes: []project.Scene{
		{SceneNumber: 1, Description: "boats"},
		{SceneNumber: 2, Description: "gulls"},
	}}
}

func TestSubmitCreatesQueuedJobAndEnqueues(t *testing.T) {
	svc, _, q, cfg := newTestService(t)
	ctx := context.Background()
	video := createVideo(t, svc, twoScenes())

	job, err := svc.Submit(ctx, SubmitRequest{VideoID: video.ID, Concept: "a harbor at dawn"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if job.Status != string(project.JobQueued) || job.Type != string(project.JobCreateVideo) {
		t.Fatalf("unexpected job: %+v", job)
	}
	if job.Params.ProviderModelID != cfg.Providers.DefaultModel || job.Params.StoryIdea != "a harbor at dawn" {
		t.Fatalf("unexpected params: %+v", job.Params)
	}
	if len(q.payloads) != 1 || q.payloads[0].JobID != job.ID || q.payloads[0].UserID != "user-1" {
		t.Fatalf("unexpected payloads: %+v", q.payloads)
	}

	status, err := svc.Status(ctx, job.ID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Status != "QUEUED" || status.Stage != "QUEUED" || status.Result != nil {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestSubmitRejectsIncompatibleAspectRatio(t *testing.T) {
	svc, store, q, _ := newTestService(t)
	ctx := context.Background()
	video := createVideo(t, svc, twoScenes())

	_, err := svc.Submit(ctx, SubmitRequest{VideoID: video.ID, ProviderModelID: "veo-3.0-fast", AspectRatio: "1:1"})
	if !errors.Is(err, services.ErrIncompatible) {
		t.Fatalf("expected incompatible capability, got %v", err)
	}
	jobs, _ := store.ListJobs(ctx, project.JobFilter{VideoID: video.ID})
	if len(jobs) != 0 || len(q.payloads) != 0 {
		t.Fatalf("rejected submission must not create or enqueue a job")
	}
}

func TestSubmitRejectsSecondActiveJob(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()
	video := createVideo(t, svc, twoScenes())
	if _, err := svc.Submit(ctx, SubmitRequest{VideoID: video.ID}); err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	_, err := svc.Submit(ctx, SubmitRequest{VideoID: video.ID, Type: "regenerate_video"})
	if !errors.Is(err, project.ErrActiveJob) {
		t.Fatalf("expected active job conflict, got %v", err)
	}
}

func TestSubmitReleasesSlotWhenEnqueueFails(t *testing.T) {
	svc, store, q, _ := newTestService(t)
	ctx := context.Background()
	video := createVideo(t, svc, twoScenes())
	q.err = errors.New("redis unavailable")

	if _, err := svc.Submit(ctx, SubmitRequest{VideoID: video.ID}); !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
	jobs, _ := store.ListJobs(ctx, project.JobFilter{VideoID: video.ID})
	if len(jobs) != 1 || jobs[0].Status != project.JobFailed {
		t.Fatalf("expected one FAILED job, got %+v", jobs)
	}

	q.err = nil
	if _, err := svc.Submit(ctx, SubmitRequest{VideoID: video.ID}); err != nil {
		t.Fatalf("slot should be free after failed enqueue: %v", err)
	}
}

func TestSubmitReleasesSlotWhenHistoryWriteFails(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, db := testsupport.MustOpenStore(t, cfg)
	registry := providers.NewRegistry()
	registry.SetGenerator(providers.ProviderVeo, nopGenerator{})
	q := &fakeEnqueuer{}
	svc := NewJobService(cfg, store, q, registry, nil)
	ctx := context.Background()
	video := createVideo(t, svc, twoScenes())

	if _, err := db.Exec(ctx, "ALTER TABLE video_history RENAME TO video_history_moved"); err != nil {
		t.Fatalf("rename history table: %v", err)
	}
	if _, err := svc.Submit(ctx, SubmitRequest{VideoID: video.ID}); err == nil {
		t.Fatal("expected submit to fail without a history table")
	}
	if _, err := db.Exec(ctx, "ALTER TABLE video_history_moved RENAME TO video_history"); err != nil {
		t.Fatalf("restore history table: %v", err)
	}

	jobs, _ := store.ListJobs(ctx, project.JobFilter{VideoID: video.ID})
	if len(jobs) != 1 || jobs[0].Status != project.JobFailed {
		t.Fatalf("expected the unrecorded job to be FAILED, got %+v", jobs)
	}
	if _, err := svc.Submit(ctx, SubmitRequest{VideoID: video.ID}); err != nil {
		t.Fatalf("slot should be free after failed history write: %v", err)
	}
	if len(q.payloads) != 1 {
		t.Fatalf("only the second submit should enqueue, got %d", len(q.payloads))
	}
}

func TestSubmitValidatesStoryboardRequirements(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()
	empty := createVideo(t, svc, nil)
	boarded := createVideo(t, svc, twoScenes())

	cases := []struct {
		name string
		req  SubmitRequest
	}{
		{"create without idea", SubmitRequest{VideoID: empty.ID}},
		{"regenerate without storyboard", SubmitRequest{VideoID: empty.ID, Type: "REGENERATE_VIDEO"}},
		{"update missing scene", SubmitRequest{VideoID: boarded.ID, Type: "UPDATE_SCENE", SceneNumber: 7}},
		{"unknown type", SubmitRequest{VideoID: boarded.ID, Type: "PUBLISH"}},
		{"missing video id", SubmitRequest{}},
	}
	for _, tc := range cases {
		if _, err := svc.Submit(ctx, tc.req); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("%s: expected validation error, got %v", tc.name, err)
		}
	}
}

func TestSubmitUnknownVideo(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	if _, err := svc.Submit(context.Background(), SubmitRequest{VideoID: "missing"}); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestStatusOfHidesResultUntilCompleted(t *testing.T) {
	result := &project.Result{VideoKey: "k"}
	failed := StatusOf(&project.Job{Status: project.JobFailed, Stage: project.StageFailed, Error: "boom", Result: result})
	if failed.Result != nil || failed.Error != "boom" || failed.Status != "FAILED" {
		t.Fatalf("unexpected failed status: %+v", failed)
	}
	done := StatusOf(&project.Job{Status: project.JobCompleted, Result: result})
	if done.Result == nil {
		t.Fatal("completed job should expose its result")
	}
}

func TestCreateVideoRejectsUnknownVisibility(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	_, err := svc.CreateVideo(context.Background(), CreateVideoRequest{UserID: "user-1", Visibility: "friends"})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestModelsReportConfiguredProviders(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	var veo, kling bool
	for _, m := range svc.Models() {
		switch m.Provider {
		case string(providers.ProviderVeo):
			veo = veo || m.Configured
		case string(providers.ProviderKling):
			kling = kling || m.Configured
		}
	}
	if !veo || kling {
		t.Fatalf("expected only veo configured, veo=%v kling=%v", veo, kling)
	}
}
