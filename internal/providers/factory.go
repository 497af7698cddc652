package providers

import (
	"context"
	"log/slog"

	"vidforge/internal/config"
)

// NewFromConfig builds the registry and attaches a generator for every
// provider that has credentials. Models of unconfigured providers stay
// registered so configs can still be validated against them.
func NewFromConfig(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Registry, error) {
	registry := NewRegistry()
	if cfg.Providers.Veo.APIKey != "" {
		veo, err := NewVeoGenerator(ctx, cfg.Providers.Veo, logger)
		if err != nil {
			return nil, err
		}
		registry.SetGenerator(ProviderVeo, veo)
	}
	if cfg.Providers.Kling.AccessKey != "" && cfg.Providers.Kling.SecretKey != "" {
		kling, err := NewKlingGenerator(cfg.Providers.Kling, logger)
		if err != nil {
			return nil, err
		}
		registry.SetGenerator(ProviderKling, kling)
	}
	return registry, nil
}
