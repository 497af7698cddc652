package daemon

import (
	"context"
	"net/http"
	"testing"

	"vidforge/internal/api"
	"vidforge/internal/config"
	"vidforge/internal/preflight"
	"vidforge/internal/workflow"
)

func TestDaemonStartStop(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := h.daemon.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !h.daemon.Running() {
		t.Fatal("expected daemon running")
	}
	if err := h.daemon.Start(ctx); err == nil {
		t.Fatal("expected second Start to fail")
	}

	addr := h.daemon.APIAddress()
	if addr == "" {
		t.Fatal("expected API address after start")
	}
	resp, err := http.Get("http://" + addr + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	if status := h.daemon.Status(ctx); !status.Running || !status.Workflow.Running {
		t.Fatalf("unexpected status: %+v", status)
	}

	h.daemon.Stop()
	if h.daemon.Running() || h.daemon.APIAddress() != "" {
		t.Fatal("expected daemon stopped")
	}
}

func TestDaemonLockPreventsSecondInstance(t *testing.T) {
	h := newHarness(t, func(c *config.Config) { c.Paths.APIBind = "off" })
	ctx := context.Background()
	if err := h.daemon.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if h.daemon.APIAddress() != "" {
		t.Fatal("api should be disabled")
	}

	other, err := New(h.cfg, nil, h.daemon.store,
		workflow.NewConsumer(h.cfg, h.queue, h.daemon.store, idleProcessor{}, nil),
		h.jobs, preflight.Targets{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := other.Start(ctx); err == nil {
		other.Stop()
		t.Fatal("expected lock contention error")
	}

	h.daemon.Stop()
	if err := other.Start(ctx); err != nil {
		t.Fatalf("Start after release: %v", err)
	}
	other.Stop()
}

func TestNewRequiresCollaborators(t *testing.T) {
	if _, err := New(&config.Config{}, nil, nil, nil, (*api.JobService)(nil), preflight.Targets{}); err == nil {
		t.Fatal("expected error for missing collaborators")
	}
}
