package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeDatabase()
	c.normalizeQueue()
	c.normalizeRedis()
	c.normalizeProviders()
	c.normalizeNarration()
	c.normalizeStoryboard()
	if err := c.normalizeStorage(); err != nil {
		return err
	}
	if err := c.normalizeMedia(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		c.Paths.APIToken = firstEnv("VIDFORGE_API_TOKEN")
	}
	return nil
}

func (c *Config) normalizeDatabase() {
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	switch c.Database.Driver {
	case "", "sqlite3":
		c.Database.Driver = "sqlite"
	case "postgres", "postgresql":
		c.Database.Driver = "pgx"
	}
	c.Database.DSN = strings.TrimSpace(c.Database.DSN)
	if c.Database.DSN == "" {
		if value, ok := os.LookupEnv("DATABASE_URL"); ok && strings.TrimSpace(value) != "" {
			c.Database.DSN = strings.TrimSpace(value)
			if c.Database.Driver == "sqlite" && strings.HasPrefix(c.Database.DSN, "postgres") {
				c.Database.Driver = "pgx"
			}
		}
	}
	if c.Database.DSN == "" && c.Database.Driver == "sqlite" {
		c.Database.DSN = filepath.Join(c.Paths.StateDir, "vidforge.db")
	}
}

func (c *Config) normalizeQueue() {
	c.Queue.Backend = strings.ToLower(strings.TrimSpace(c.Queue.Backend))
	c.Queue.Name = strings.TrimSpace(c.Queue.Name)
	if c.Queue.Name == "" {
		c.Queue.Name = defaultQueueName
	}
	c.Queue.CompletedRetention = strings.ToLower(strings.TrimSpace(c.Queue.CompletedRetention))
	c.Queue.FailedRetention = strings.ToLower(strings.TrimSpace(c.Queue.FailedRetention))
}

func (c *Config) normalizeRedis() {
	if value, ok := os.LookupEnv("REDIS_ADDR"); ok && strings.TrimSpace(value) != "" {
		if c.Redis.Addr == "" || c.Redis.Addr == defaultRedisAddr {
			c.Redis.Addr = strings.TrimSpace(value)
		}
	}
	if c.Redis.Password == "" {
		if value, ok := os.LookupEnv("REDIS_PASSWORD"); ok {
			c.Redis.Password = value
		}
	}
	c.Redis.KeyPrefix = strings.Trim(strings.TrimSpace(c.Redis.KeyPrefix), ":")
	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = defaultRedisKeyPrefix
	}
}

func (c *Config) normalizeProviders() {
	if c.Providers.Veo.APIKey == "" {
		c.Providers.Veo.APIKey = firstEnv("GEMINI_API_KEY", "GOOGLE_API_KEY")
	}
	if c.Providers.Kling.AccessKey == "" {
		c.Providers.Kling.AccessKey = firstEnv("KLING_ACCESS_KEY")
	}
	if c.Providers.Kling.SecretKey == "" {
		c.Providers.Kling.SecretKey = firstEnv("KLING_SECRET_KEY")
	}
	c.Providers.Kling.BaseURL = strings.TrimRight(strings.TrimSpace(c.Providers.Kling.BaseURL), "/")
	if c.Providers.Kling.BaseURL == "" {
		c.Providers.Kling.BaseURL = defaultKlingBaseURL
	}
	c.Providers.DefaultModel = strings.TrimSpace(c.Providers.DefaultModel)
	if c.Providers.DefaultModel == "" {
		c.Providers.DefaultModel = defaultProviderModel
	}
	c.Providers.DefaultAspectRatio = strings.TrimSpace(c.Providers.DefaultAspectRatio)
	if c.Providers.DefaultAspectRatio == "" {
		c.Providers.DefaultAspectRatio = defaultAspectRatio
	}
}

func (c *Config) normalizeNarration() {
	if c.Narration.APIKey == "" {
		c.Narration.APIKey = firstEnv("OPENAI_API_KEY")
	}
	c.Narration.Format = strings.ToLower(strings.TrimSpace(c.Narration.Format))
	if c.Narration.Format == "" {
		c.Narration.Format = defaultNarrationFormat
	}
	if strings.TrimSpace(c.Narration.DefaultVoice) == "" {
		c.Narration.DefaultVoice = defaultNarrationVoice
	}
}

func (c *Config) normalizeStoryboard() {
	c.Storyboard.Backend = strings.ToLower(strings.TrimSpace(c.Storyboard.Backend))
	if c.Storyboard.Backend == "" {
		c.Storyboard.Backend = defaultStoryboardBackend
	}
	if c.Storyboard.APIKey == "" && c.Storyboard.Backend == "openai" {
		c.Storyboard.APIKey = firstEnv("OPENROUTER_API_KEY", "OPENAI_API_KEY")
	}
	c.Storyboard.BaseURL = strings.TrimRight(strings.TrimSpace(c.Storyboard.BaseURL), "/")
	if c.Storyboard.MaxScenes <= 0 {
		c.Storyboard.MaxScenes = defaultStoryboardMaxScenes
	}
}

func (c *Config) normalizeStorage() error {
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.SupabaseURL == "" {
		c.Storage.SupabaseURL = firstEnv("SUPABASE_URL")
	}
	if c.Storage.SupabaseKey == "" {
		c.Storage.SupabaseKey = firstEnv("SUPABASE_SERVICE_KEY", "SUPABASE_KEY")
	}
	c.Storage.SupabaseURL = strings.TrimRight(strings.TrimSpace(c.Storage.SupabaseURL), "/")
	c.Storage.PublicBaseURL = strings.TrimRight(strings.TrimSpace(c.Storage.PublicBaseURL), "/")
	prefix := strings.Trim(strings.TrimSpace(c.Storage.MusicPrefix), "/")
	if prefix != "" {
		prefix += "/"
	}
	c.Storage.MusicPrefix = prefix
	var err error
	if c.Storage.LocalDir, err = expandPath(c.Storage.LocalDir); err != nil {
		return fmt.Errorf("storage.local_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeMedia() error {
	c.Media.Transition = strings.ToLower(strings.TrimSpace(c.Media.Transition))
	if c.Media.Transition == "" {
		c.Media.Transition = defaultTransition
	}
	if strings.TrimSpace(c.Media.FFmpegBinary) == "" {
		c.Media.FFmpegBinary = defaultFFmpegBinary
	}
	if strings.TrimSpace(c.Media.FFprobeBinary) == "" {
		c.Media.FFprobeBinary = defaultFFprobeBinary
	}
	if c.Media.CaptionFontFile != "" {
		var err error
		if c.Media.CaptionFontFile, err = expandPath(c.Media.CaptionFontFile); err != nil {
			return fmt.Errorf("media.caption_font_file: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
