package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var supportedTransitions = map[string]struct{}{
	"fade": {}, "fadeblack": {}, "fadewhite": {}, "dissolve": {}, "wipeleft": {}, "wiperight": {},
	"slideleft": {}, "slideright": {}, "circleopen": {}, "circleclose": {}, "distance": {}, "smoothleft": {},
}

// Validate ensures the configuration is usable. Provider and storage
// credentials are checked by preflight rather than here so read-only CLI
// commands work without them.
func (c *Config) Validate() error {
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateQueue(); err != nil {
		return err
	}
	if err := c.validateProviders(); err != nil {
		return err
	}
	if err := c.validateStoryboard(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateMedia(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateDatabase() error {
	switch c.Database.Driver {
	case "sqlite", "pgx":
	default:
		return fmt.Errorf("database.driver: unsupported value %q (expected sqlite or pgx)", c.Database.Driver)
	}
	if c.Database.Driver == "pgx" && c.Database.DSN == "" {
		return errors.New("database.dsn must be set when database.driver is pgx (or set DATABASE_URL)")
	}
	return nil
}

func (c *Config) validateQueue() error {
	switch c.Queue.Backend {
	case "sql", "redis":
	default:
		return fmt.Errorf("queue.backend: unsupported value %q (expected sql or redis)", c.Queue.Backend)
	}
	if err := ensurePositive(map[string]int{
		"queue.workers":              c.Queue.Workers,
		"queue.poll_interval":        c.Queue.PollInterval,
		"queue.lease_seconds":        c.Queue.LeaseSeconds,
		"queue.heartbeat_interval":   c.Queue.HeartbeatInterval,
		"queue.max_attempts":         c.Queue.MaxAttempts,
		"queue.backoff_base_seconds": c.Queue.BackoffBaseSeconds,
	}); err != nil {
		return err
	}
	if c.Queue.HeartbeatInterval >= c.Queue.LeaseSeconds {
		return errors.New("queue.heartbeat_interval must be less than queue.lease_seconds")
	}
	if c.Queue.BackoffMultiplier < 1 {
		return errors.New("queue.backoff_multiplier must be at least 1")
	}
	if err := validateRetention("queue.completed_retention", c.Queue.CompletedRetention); err != nil {
		return err
	}
	if err := validateRetention("queue.failed_retention", c.Queue.FailedRetention); err != nil {
		return err
	}
	if c.Queue.Backend == "redis" && strings.TrimSpace(c.Redis.Addr) == "" {
		return errors.New("redis.addr must be set when queue.backend is redis")
	}
	return nil
}

func validateRetention(key, value string) error {
	switch value {
	case RetentionRetain, RetentionPurge:
		return nil
	default:
		return fmt.Errorf("%s must be %q or %q, got %q", key, RetentionRetain, RetentionPurge, value)
	}
}

func (c *Config) validateProviders() error {
	return ensurePositive(map[string]int{
		"providers.timeout_seconds":    c.Providers.TimeoutSeconds,
		"providers.veo.poll_seconds":   c.Providers.Veo.PollSeconds,
		"providers.kling.poll_seconds": c.Providers.Kling.PollSeconds,
	})
}

func (c *Config) validateStoryboard() error {
	switch c.Storyboard.Backend {
	case "gemini", "openai":
	default:
		return fmt.Errorf("storyboard.backend: unsupported value %q (expected gemini or openai)", c.Storyboard.Backend)
	}
	if c.Storyboard.Enabled && strings.TrimSpace(c.Storyboard.Model) == "" {
		return errors.New("storyboard.model must be set when storyboard planning is enabled")
	}
	return nil
}

func (c *Config) validateStorage() error {
	if strings.TrimSpace(c.Storage.Bucket) == "" {
		return errors.New("storage.bucket must be set")
	}
	switch c.Storage.Backend {
	case "local":
		if c.Storage.LocalDir == "" {
			return errors.New("storage.local_dir must be set when storage.backend is local")
		}
	case "supabase":
		if c.Storage.SupabaseURL == "" {
			return errors.New("storage.supabase_url must be set when storage.backend is supabase (or set SUPABASE_URL)")
		}
	default:
		return fmt.Errorf("storage.backend: unsupported value %q (expected local or supabase)", c.Storage.Backend)
	}
	return nil
}

func (c *Config) validateMedia() error {
	if err := ensurePositive(map[string]int{
		"media.frame_rate":          c.Media.FrameRate,
		"media.caption_batch_words": c.Media.CaptionBatchWords,
		"media.caption_font_size":   c.Media.CaptionFontSize,
		"media.thumbnail_width":     c.Media.ThumbnailWidth,
		"media.thumbnail_height":    c.Media.ThumbnailHeight,
		"media.scene_concurrency":   c.Media.SceneConcurrency,
	}); err != nil {
		return err
	}
	if _, ok := supportedTransitions[c.Media.Transition]; !ok {
		return fmt.Errorf("media.transition: unsupported value %q", c.Media.Transition)
	}
	if c.Media.TransitionSeconds <= 0 {
		return errors.New("media.transition_seconds must be positive")
	}
	if c.Media.MusicVolume < 0 || c.Media.ForegroundVolume < 0 {
		return errors.New("media.music_volume and media.foreground_volume must not be negative")
	}
	if c.Media.ThumbnailSeconds < 0 {
		return errors.New("media.thumbnail_seconds must not be negative")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
		return nil
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
}

func ensurePositive(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
