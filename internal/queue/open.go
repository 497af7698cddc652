package queue

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"

	"vidforge/internal/config"
	"vidforge/internal/database"
)

// Open builds the configured queue backend. db is required for the sql backend.
func Open(ctx context.Context, cfg *config.Config, db *database.DB) (Queue, error) {
	switch cfg.Queue.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("connect redis %s: %w", cfg.Redis.Addr, err)
		}
		return NewRedisQueue(client, cfg.Redis.KeyPrefix, cfg.Queue.Name), nil
	case "sql", "":
		return NewSQLQueue(ctx, db, cfg.Queue.Name)
	default:
		return nil, fmt.Errorf("unsupported queue backend %q", cfg.Queue.Backend)
	}
}
