package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"vidforge/internal/captions"
	"vidforge/internal/config"
	"vidforge/internal/daemon"
	"vidforge/internal/logging"
	"vidforge/internal/media"
	"vidforge/internal/narration"
	"vidforge/internal/pipeline"
	"vidforge/internal/preflight"
	"vidforge/internal/render"
	"vidforge/internal/stitch"
	"vidforge/internal/storage"
	"vidforge/internal/storyboard"
	"vidforge/internal/workflow"
)

func newWorkerCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the queue worker and admin API in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker(cmd.Context(), ctx)
		},
	}
}

func runWorker(cmdCtx context.Context, ctx *commandContext) error {
	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	pidPath := filepath.Join(cfg.Paths.StateDir, "vidforge.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	b, err := openBackend(signalCtx, cfg, logger)
	if err != nil {
		logger.Error("open backend", logging.Error(err))
		return err
	}
	defer b.Close()

	gateway, err := storage.New(cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("configure storage: %w", err)
	}
	orchestrator, err := buildPipeline(signalCtx, cfg, b, gateway, logger)
	if err != nil {
		return err
	}

	consumer := workflow.NewConsumer(cfg, b.queue, b.store, orchestrator, logger)
	d, err := daemon.New(cfg, logger, b.store, consumer, b.jobs, preflight.Targets{
		Database: b.db.Ping,
		Storage: func(ctx context.Context) error {
			return gateway.Ping(ctx, cfg.Storage.Bucket)
		},
		Queue: func(ctx context.Context) error {
			_, err := b.queue.Stats(ctx)
			return err
		},
	})
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	if err := d.Start(signalCtx); err != nil {
		return err
	}

	<-signalCtx.Done()
	logger.Info("vidforge worker shutting down")
	d.Stop()
	return nil
}

func buildPipeline(ctx context.Context, cfg *config.Config, b *backend, gateway storage.Gateway, logger *slog.Logger) (*pipeline.Orchestrator, error) {
	ffmpeg := media.NewFFmpeg(cfg.Media.FFmpegBinary, cfg.Media.FFprobeBinary, media.ExecRunner{WaitDelay: 5 * time.Second}, logger)

	narrator, err := narration.NewOpenAISynthesizer(cfg.Narration, logger)
	if err != nil {
		return nil, fmt.Errorf("configure narration: %w", err)
	}
	renderer := render.New(narrator, ffmpeg, render.Options{
		Concurrency: cfg.Media.SceneConcurrency,
		FrameRate:   cfg.Media.FrameRate,
	}, logger)
	stitcher := stitch.New(ffmpeg, stitch.Options{
		MusicVolume:      cfg.Media.MusicVolume,
		ForegroundVolume: cfg.Media.ForegroundVolume,
		CaptionBatch:     cfg.Media.CaptionBatchWords,
		CaptionStyle:     captions.Style{FontSize: cfg.Media.CaptionFontSize, FontFile: cfg.Media.CaptionFontFile},
	}, logger)

	var planner storyboard.Planner
	if cfg.Storyboard.Enabled {
		built, err := storyboard.NewFromConfig(ctx, cfg, logger)
		if err != nil {
			logging.WarnWithContext(logger, "storyboard planner unavailable", "planner_unavailable",
				logging.Error(err),
				logging.String(logging.FieldImpact, "jobs without a storyboard will fail"),
				logging.String("backend", cfg.Storyboard.Backend),
				logging.String(logging.FieldErrorHint, "set the storyboard backend api key or disable storyboard planning"),
			)
		} else {
			planner = built
		}
	}

	orchestrator, err := pipeline.New(cfg, pipeline.Dependencies{
		Store:    b.store,
		Registry: b.registry,
		Renderer: renderer,
		Stitcher: stitcher,
		FFmpeg:   ffmpeg,
		Storage:  gateway,
		Planner:  planner,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build pipeline: %w", err)
	}
	return orchestrator, nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
