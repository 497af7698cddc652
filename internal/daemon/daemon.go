package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"vidforge/internal/api"
	"vidforge/internal/config"
	"vidforge/internal/logging"
	"vidforge/internal/preflight"
	"vidforge/internal/project"
	"vidforge/internal/staging"
	"vidforge/internal/workflow"
)

// Daemon coordinates the queue consumer and admin API and enforces
// single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *project.Store
	consumer *workflow.Consumer
	jobs     *api.JobService
	targets  preflight.Targets

	lockPath string
	lock     *flock.Flock
	server   *apiServer

	running atomic.Bool
	cancel  context.CancelFunc
}

// New constructs a daemon. targets are probed by the startup preflight.
func New(cfg *config.Config, logger *slog.Logger, store *project.Store, consumer *workflow.Consumer, jobs *api.JobService, targets preflight.Targets) (*Daemon, error) {
	if cfg == nil || store == nil || consumer == nil || jobs == nil {
		return nil, errors.New("daemon requires config, store, consumer, and job service")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		consumer: consumer,
		jobs:     jobs,
		targets:  targets,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.server = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock, then launches the consumer and API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another vidforge worker is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.sweepStaging(runCtx)
	d.runPreflight(runCtx)

	if err := d.consumer.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start consumer: %w", err)
	}
	if err := d.server.start(runCtx); err != nil {
		d.consumer.Stop()
		cancel()
		_ = d.lock.Unlock()
		return err
	}

	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("vidforge worker started",
		logging.String("lock", d.lockPath),
		logging.String("queue_backend", d.cfg.Queue.Backend),
		logging.Int("workers", d.cfg.Queue.Workers),
		logging.String(logging.FieldEventType, "daemon_started"),
	)
	return nil
}

// Stop stops background processing and releases the daemon lock. Messages
// held by in-flight jobs are left unsettled for redelivery.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	d.server.stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.consumer.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("vidforge worker stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Running reports whether Start succeeded and Stop has not been called.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// APIAddress returns the bound admin API address, or "" when disabled or
// not yet started.
func (d *Daemon) APIAddress() string {
	return d.server.address()
}

// Status aggregates consumer, queue and dependency state.
func (d *Daemon) Status(ctx context.Context) api.DaemonStatus {
	return api.DaemonStatus{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		LockFilePath: d.lockPath,
		QueueBackend: d.cfg.Queue.Backend,
		Workflow:     api.FromStatusSummary(d.consumer.Status(ctx)),
		Dependencies: api.FromDependencies(preflight.CheckSystemDeps(d.cfg)),
	}
}

func (d *Daemon) sweepStaging(ctx context.Context) {
	if d.cfg.Paths.StagingMaxAgeHours <= 0 {
		return
	}
	maxAge := time.Duration(d.cfg.Paths.StagingMaxAgeHours) * time.Hour
	result := staging.CleanStale(ctx, d.cfg.Paths.StagingDir, maxAge, d.logger)
	if len(result.Removed) > 0 || len(result.Errors) > 0 {
		d.logger.Info("staging sweep complete",
			logging.Int("removed", len(result.Removed)),
			logging.Int("errors", len(result.Errors)),
			logging.String(logging.FieldEventType, "staging_sweep"),
		)
	}
}

func (d *Daemon) runPreflight(ctx context.Context) {
	results := preflight.RunAll(ctx, d.cfg, d.targets)
	for _, r := range preflight.Failed(results) {
		logging.WarnWithContext(d.logger, "preflight check failed", "preflight_failed",
			logging.String("check", r.Name),
			logging.String("detail", r.Detail),
			logging.String(logging.FieldImpact, "jobs that depend on this check will fail"),
		)
	}
	d.logger.Info("preflight complete",
		logging.Int("checks", len(results)),
		logging.Int("failed", len(preflight.Failed(results))),
	)
}
