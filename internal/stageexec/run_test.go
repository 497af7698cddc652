package stageexec

import (
	"context"
	"errors"
	"testing"

	"vidforge/internal/logging"
	"vidforge/internal/project"
	"vidforge/internal/services"
	"vidforge/internal/stage"
)

type memoryStore struct {
	snapshots []project.Job
}

func (m *memoryStore) UpdateJob(_ context.Context, job *project.Job) error {
	m.snapshots = append(m.snapshots, *job)
	return nil
}

type scriptedHandler struct {
	prepareErr error
	executeErr error
}

func (h scriptedHandler) Prepare(context.Context, *stage.Run) error { return h.prepareErr }
func (h scriptedHandler) Execute(context.Context, *stage.Run) error { return h.executeErr }
func (h scriptedHandler) HealthCheck(context.Context) stage.Health  { return stage.Healthy("test") }

func newRun() *stage.Run {
	return &stage.Run{Job: &project.Job{
		ID:       "job-1",
		Status:   project.JobProcessing,
		Progress: project.NewProgress(4),
	}}
}

func TestRunRecordsProgress(t *testing.T) {
	store := &memoryStore{}
	run := newRun()
	err := Run(context.Background(), Options{
		Logger:  logging.NewNop(),
		Store:   store,
		Handler: scriptedHandler{},
		Stage:   project.StageRenderingScenes,
		Run:     run,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(store.snapshots) != 2 {
		t.Fatalf("expected stage start and completion persisted, got %d writes", len(store.snapshots))
	}
	if store.snapshots[0].Stage != project.StageRenderingScenes || store.snapshots[0].Progress.CompletedSteps != 0 {
		t.Fatalf("unexpected start snapshot %+v", store.snapshots[0])
	}
	if run.Job.Progress.CompletedSteps != 1 || run.Job.Progress.Percent != 25 {
		t.Fatalf("unexpected progress %+v", run.Job.Progress)
	}
}

func TestRunFailureKeepsProcessing(t *testing.T) {
	store := &memoryStore{}
	run := newRun()
	stageErr := services.Wrap(services.ErrMediaProcessing, "STITCHING", "combine clips", "ffmpeg failed", errors.New("exit status 1"))
	err := Run(context.Background(), Options{
		Store:   store,
		Handler: scriptedHandler{executeErr: stageErr},
		Stage:   project.StageStitching,
		Run:     run,
	})
	if !errors.Is(err, services.ErrMediaProcessing) {
		t.Fatalf("expected stage error returned, got %v", err)
	}
	job := store.snapshots[len(store.snapshots)-1]
	if job.Status != project.JobProcessing || job.Stage != project.StageFailed || job.FailedStage != project.StageStitching {
		t.Fatalf("unexpected failure snapshot %+v", job)
	}
	if job.Error != "combine clips: ffmpeg failed: exit status 1" {
		t.Fatalf("unexpected error message %q", job.Error)
	}
	if job.Progress.CompletedSteps != 0 {
		t.Fatalf("failed stage must not count as completed: %+v", job.Progress)
	}
}

func TestFailureMessageForPlainErrors(t *testing.T) {
	if got := FailureMessage(errors.New("boom")); got != "boom" {
		t.Fatalf("FailureMessage = %q", got)
	}
	if got := FailureMessage(nil); got != "stage failed" {
		t.Fatalf("FailureMessage(nil) = %q", got)
	}
}
