package daemon

import (
	"context"
	"testing"

	"vidforge/internal/api"
	"vidforge/internal/config"
	"vidforge/internal/pipeline"
	"vidforge/internal/preflight"
	"vidforge/internal/providers"
	"vidforge/internal/queue"
	"vidforge/internal/stage"
	"vidforge/internal/testsupport"
	"vidforge/internal/workflow"
)

type idleProcessor struct{}

func (idleProcessor) Process(context.Context, string, int, bool) (pipeline.Outcome, error) {
	return pipeline.OutcomeCompleted, nil
}

func (idleProcessor) Health(context.Context) []stage.Health {
	return []stage.Health{stage.Healthy("idle")}
}

type nopGenerator struct{}

func (nopGenerator) Generate(context.Context, providers.GenerateRequest) (providers.Clip, error) {
	return providers.Clip{}, nil
}

type harness struct {
	cfg    *config.Config
	daemon *Daemon
	jobs   *api.JobService
	queue  queue.Queue
}

func newHarness(t *testing.T, opts ...func(*config.Config)) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	for _, opt := range opts {
		opt(cfg)
	}
	store, db := testsupport.MustOpenStore(t, cfg)
	q, err := queue.NewSQLQueue(context.Background(), db, cfg.Queue.Name)
	if err != nil {
		t.Fatalf("NewSQLQueue: %v", err)
	}
	registry := providers.NewRegistry()
	registry.SetGenerator(providers.ProviderVeo, nopGenerator{})
	jobs := api.NewJobService(cfg, store, q, registry, nil)
	consumer := workflow.NewConsumer(cfg, q, store, idleProcessor{}, nil)
	d, err := New(cfg, nil, store, consumer, jobs, preflight.Targets{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(d.Stop)
	return &harness{cfg: cfg, daemon: d, jobs: jobs, queue: q}
}
