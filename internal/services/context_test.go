package services_test

import (
	"context"
	"testing"

	"vidforge/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithJobID(ctx, "job-1")
	ctx = services.WithVideoID(ctx, "vid-9")
	ctx = services.WithStage(ctx, "STITCHING")
	ctx = services.WithWorker(ctx, "worker-2")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.JobIDFromContext(ctx); !ok || id != "job-1" {
		t.Fatalf("unexpected job id: %v %v", id, ok)
	}
	if id, ok := services.VideoIDFromContext(ctx); !ok || id != "vid-9" {
		t.Fatalf("unexpected video id: %v %v", id, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "STITCHING" {
		t.Fatalf("unexpected stage: %v %v", stage, ok)
	}
	if w, ok := services.WorkerFromContext(ctx); !ok || w != "worker-2" {
		t.Fatalf("unexpected worker: %v %v", w, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestStageBlankPreservesContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithStage(ctx, "")
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected no stage value")
	}
}
