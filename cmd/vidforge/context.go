package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"vidforge/internal/api"
	"vidforge/internal/config"
	"vidforge/internal/database"
	"vidforge/internal/logging"
	"vidforge/internal/project"
	"vidforge/internal/providers"
	"vidforge/internal/queue"
)

type commandContext struct {
	configFlag *string
	jsonFlag   *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		jsonFlag:   jsonFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

// JSONMode reports whether --json was passed.
func (c *commandContext) JSONMode() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

// backend holds the store, queue and provider registry a short-lived CLI
// command needs to talk to the same state a worker uses.
type backend struct {
	db       *database.DB
	store    *project.Store
	queue    queue.Queue
	registry *providers.Registry
	jobs     *api.JobService
}

func openBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*backend, error) {
	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	store, err := project.NewStore(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open project store: %w", err)
	}
	q, err := queue.Open(ctx, cfg, db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open queue: %w", err)
	}
	registry, err := providers.NewFromConfig(ctx, cfg, logger)
	if err != nil {
		_ = q.Close()
		_ = db.Close()
		return nil, fmt.Errorf("configure providers: %w", err)
	}
	return &backend{
		db:       db,
		store:    store,
		queue:    q,
		registry: registry,
		jobs:     api.NewJobService(cfg, store, q, registry, logger),
	}, nil
}

func (b *backend) Close() {
	if b == nil {
		return
	}
	_ = b.queue.Close()
	_ = b.db.Close()
}

func (c *commandContext) withBackend(cmd *cobra.Command, fn func(*backend) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	b, err := openBackend(cmd.Context(), cfg, logging.NewNop())
	if err != nil {
		return err
	}
	defer b.Close()
	return fn(b)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
