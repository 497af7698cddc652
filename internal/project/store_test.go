package project_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"vidforge/internal/database"
	"vidforge/internal/project"
	"vidforge/internal/services"
)

func openStore(t *testing.T) *project.Store {
	t.Helper()
	ctx := context.Background()
	db, err := database.OpenSQLite(ctx, filepath.Join(t.TempDir(), "project.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	store, err := project.NewStore(ctx, db)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store
}

func sampleBoard() *project.Storyboard {
	return &project.Storyboard{
		Title: "Lighthouse",
		Scenes: []project.Scene{
			{SceneNumber: 1, Description: "A storm rolls in", Voiceover: "The night was loud."},
			{SceneNumber: 2, Description: "The keeper climbs", Voiceover: "He climbed the stairs."},
		},
	}
}

func TestCreateVideoAndJobClaimsActiveSlot(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	video, err := store.CreateVideo(ctx, &project.Video{UserID: "user-1", Storyboard: sampleBoard()})
	if err != nil {
		t.Fatalf("CreateVideo: %v", err)
	}
	if video.Version != 1 || video.Status != project.VideoDraft {
		t.Fatalf("unexpected video defaults: %+v", video)
	}

	job, err := store.CreateJob(ctx, &project.Job{VideoID: video.ID, Type: project.JobCreateVideo, Params: project.JobParams{ProviderModelID: "veo-3.0-fast"}})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if job.Status != project.JobQueued || job.UserID != "user-1" || job.Progress.TotalSteps != 4 {
		t.Fatalf("unexpected job: %+v", job)
	}

	_, err = store.CreateJob(ctx, &project.Job{VideoID: video.ID, Type: project.JobRegenerateVideo})
	if !errors.Is(err, project.ErrActiveJob) || !errors.Is(err, services.ErrConflict) {
		t.Fatalf("expected active job conflict, got %v", err)
	}

	reloaded, err := store.GetVideo(ctx, video.ID)
	if err != nil {
		t.Fatalf("GetVideo: %v", err)
	}
	if reloaded.CurrentJobID != job.ID || reloaded.Status != project.VideoProcessing {
		t.Fatalf("expected video claimed by job, got %+v", reloaded)
	}
	if reloaded.Storyboard == nil || len(reloaded.Storyboard.Scenes) != 2 {
		t.Fatalf("expected storyboard round trip, got %+v", reloaded.Storyboard)
	}

	job.Status = project.JobProcessing
	if err := store.UpdateJob(ctx, job); err != nil {
		t.Fatalf("UpdateJob processing: %v", err)
	}
	job.Status = project.JobCompleted
	job.Stage = project.StageCompleted
	job.Result = &project.Result{VideoKey: "k", VideoURL: "u", DurationSeconds: 9}
	if err := store.UpdateJob(ctx, job); err != nil {
		t.Fatalf("UpdateJob completed: %v", err)
	}

	next, err := store.CreateJob(ctx, &project.Job{VideoID: video.ID, Type: project.JobUpdateScene, Params: project.JobParams{SceneNumber: 2}})
	if err != nil {
		t.Fatalf("expected slot to free after completion: %v", err)
	}
	if next.ID == job.ID {
		t.Fatal("expected a new job id")
	}
}

func TestCreateJobUnknownVideo(t *testing.T) {
	store := openStore(t)
	_, err := store.CreateJob(context.Background(), &project.Job{VideoID: "missing", Type: project.JobCreateVideo})
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateJobRejectsBackwardTransition(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	video, _ := store.CreateVideo(ctx, &project.Video{UserID: "u"})
	job, err := store.CreateJob(ctx, &project.Job{VideoID: video.ID, Type: project.JobCreateVideo})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	job.Status = project.JobFailed
	if err := store.UpdateJob(ctx, job); err != nil {
		t.Fatalf("fail job: %v", err)
	}
	job.Status = project.JobProcessing
	if err := store.UpdateJob(ctx, job); !errors.Is(err, project.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	stored, _ := store.GetJob(ctx, job.ID)
	if stored.Status != project.JobFailed || stored.FinishedAt.IsZero() {
		t.Fatalf("expected job to stay failed with finish time, got %+v", stored)
	}
}

func TestMarkJobFailedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	video, _ := store.CreateVideo(ctx, &project.Video{UserID: "u"})
	job, _ := store.CreateJob(ctx, &project.Job{VideoID: video.ID, Type: project.JobCreateVideo})

	failed, err := store.MarkJobFailed(ctx, job.ID, project.StageStitching, "xfade failed")
	if err != nil {
		t.Fatalf("MarkJobFailed: %v", err)
	}
	if failed.Status != project.JobFailed || failed.FailedStage != project.StageStitching || failed.Result != nil {
		t.Fatalf("unexpected failed job: %+v", failed)
	}
	again, err := store.MarkJobFailed(ctx, job.ID, project.StageUploading, "other")
	if err != nil {
		t.Fatalf("second MarkJobFailed: %v", err)
	}
	if again.FailedStage != project.StageStitching || again.Error != "xfade failed" {
		t.Fatalf("expected original failure preserved, got %+v", again)
	}
	v, _ := store.GetVideo(ctx, video.ID)
	if v.Status != project.VideoFailed {
		t.Fatalf("expected video failed, got %s", v.Status)
	}
	history, err := store.History(ctx, video.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 1 || history[0].To != "FAILED" {
		t.Fatalf("expected one failure history entry, got %+v", history)
	}
}

func TestSaveStoryboardBumpsVersionAndValidates(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	video, _ := store.CreateVideo(ctx, &project.Video{UserID: "u"})

	version, err := store.SaveStoryboard(ctx, video.ID, *sampleBoard())
	if err != nil {
		t.Fatalf("SaveStoryboard: %v", err)
	}
	if version != 2 {
		t.Fatalf("expected version 2, got %d", version)
	}
	bumped, err := store.BumpVersion(ctx, video.ID)
	if err != nil || bumped != 3 {
		t.Fatalf("expected version 3, got %d (%v)", bumped, err)
	}

	bad := project.Storyboard{Scenes: []project.Scene{{SceneNumber: 1}, {SceneNumber: 3}}}
	if _, err := store.SaveStoryboard(ctx, video.ID, bad); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for gap, got %v", err)
	}
}

func TestSetVideoStatusKeepsPreviousResultOnFailure(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	video, _ := store.CreateVideo(ctx, &project.Video{UserID: "u"})
	if err := store.SetVideoStatus(ctx, video.ID, project.VideoCompleted, &project.Result{VideoKey: "v1"}); err != nil {
		t.Fatalf("SetVideoStatus: %v", err)
	}
	if err := store.SetVideoStatus(ctx, video.ID, project.VideoFailed, nil); err != nil {
		t.Fatalf("SetVideoStatus failed: %v", err)
	}
	v, _ := store.GetVideo(ctx, video.ID)
	if v.Result == nil || v.Result.VideoKey != "v1" {
		t.Fatalf("expected previous result retained, got %+v", v.Result)
	}
	if err := store.SetVideoStatus(ctx, "missing", project.VideoFailed, nil); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListJobsFilters(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	v1, _ := store.CreateVideo(ctx, &project.Video{UserID: "a"})
	v2, _ := store.CreateVideo(ctx, &project.Video{UserID: "b"})
	if _, err := store.CreateJob(ctx, &project.Job{VideoID: v1.ID, Type: project.JobCreateVideo}); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if _, err := store.CreateJob(ctx, &project.Job{VideoID: v2.ID, Type: project.JobCreateVideo}); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	jobs, err := store.ListJobs(ctx, project.JobFilter{UserID: "b", Statuses: []project.JobStatus{project.JobQueued}})
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(jobs) != 1 || jobs[0].VideoID != v2.ID {
		t.Fatalf("unexpected jobs: %+v", jobs)
	}
	counts, err := store.CountJobs(ctx)
	if err != nil || counts[project.JobQueued] != 2 {
		t.Fatalf("unexpected counts %v (%v)", counts, err)
	}
}
