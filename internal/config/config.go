package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	StagingDir         string `toml:"staging_dir"`
	StateDir           string `toml:"state_dir"`
	LogDir             string `toml:"log_dir"`
	APIBind            string `toml:"api_bind"`
	APIToken           string `toml:"api_token"`
	StagingMaxAgeHours int    `toml:"staging_max_age_hours"`
}

// Database selects the project store backend. Driver is "sqlite" or "pgx".
// An empty DSN with the sqlite driver resolves to <state_dir>/vidforge.db.
type Database struct {
	Driver string `toml:"driver"`
	DSN    string `toml:"dsn"`
}

// Queue configures the job queue and the consumer's retry policy.
type Queue struct {
	Backend            string  `toml:"backend"`
	Name               string  `toml:"name"`
	Workers            int     `toml:"workers"`
	PollInterval       int     `toml:"poll_interval"`
	LeaseSeconds       int     `toml:"lease_seconds"`
	HeartbeatInterval  int     `toml:"heartbeat_interval"`
	MaxAttempts        int     `toml:"max_attempts"`
	BackoffBaseSeconds int     `toml:"backoff_base_seconds"`
	BackoffMultiplier  float64 `toml:"backoff_multiplier"`
	CompletedRetention string  `toml:"completed_retention"`
	FailedRetention    string  `toml:"failed_retention"`
}

// Redis contains connection settings for the redis queue backend.
type Redis struct {
	Addr      string `toml:"addr"`
	Password  string `toml:"password"`
	DB        int    `toml:"db"`
	KeyPrefix string `toml:"key_prefix"`
}

// Veo configures the Google Veo provider (Gemini API).
type Veo struct {
	APIKey      string `toml:"api_key"`
	BaseURL     string `toml:"base_url"`
	PollSeconds int    `toml:"poll_seconds"`
}

// Kling configures the Kling text-to-video REST provider.
// Requests are signed with a short-lived HS256 token built from the
// access and secret keys.
type Kling struct {
	AccessKey   string `toml:"access_key"`
	SecretKey   string `toml:"secret_key"`
	BaseURL     string `toml:"base_url"`
	PollSeconds int    `toml:"poll_seconds"`
}

// Providers groups video generation provider settings.
type Providers struct {
	TimeoutSeconds     int    `toml:"timeout_seconds"`
	DefaultModel       string `toml:"default_model"`
	DefaultAspectRatio string `toml:"default_aspect_ratio"`
	Veo                Veo    `toml:"veo"`
	Kling              Kling  `toml:"kling"`
}

// Narration configures the text-to-speech synthesizer.
type Narration struct {
	APIKey       string `toml:"api_key"`
	BaseURL      string `toml:"base_url"`
	Model        string `toml:"model"`
	Format       string `toml:"format"`
	DefaultVoice string `toml:"default_voice"`
}

// Storyboard configures the storyboard planner used when a video has no scenes.
// Backend "gemini" reuses the Veo API key; "openai" talks to any
// OpenAI-compatible chat endpoint such as OpenRouter.
type Storyboard struct {
	Enabled   bool   `toml:"enabled"`
	Backend   string `toml:"backend"`
	Model     string `toml:"model"`
	MaxScenes int    `toml:"max_scenes"`
	APIKey    string `toml:"api_key"`
	BaseURL   string `toml:"base_url"`
	Referer   string `toml:"referer"`
	Title     string `toml:"title"`
}

// Storage selects the object storage gateway. Backend is "local" or "supabase".
type Storage struct {
	Backend         string `toml:"backend"`
	Bucket          string `toml:"bucket"`
	LocalDir        string `toml:"local_dir"`
	PublicBaseURL   string `toml:"public_base_url"`
	SupabaseURL     string `toml:"supabase_url"`
	SupabaseKey     string `toml:"supabase_key"`
	MusicPrefix     string `toml:"music_prefix"`
	DefaultMusicKey string `toml:"default_music_key"`
}

// Media contains ffmpeg settings for scene sync and final assembly.
type Media struct {
	FFmpegBinary             string  `toml:"ffmpeg_binary"`
	FFprobeBinary            string  `toml:"ffprobe_binary"`
	FrameRate                int     `toml:"frame_rate"`
	Transition               string  `toml:"transition"`
	TransitionSeconds        float64 `toml:"transition_seconds"`
	MusicVolume              float64 `toml:"music_volume"`
	ForegroundVolume         float64 `toml:"foreground_volume"`
	CaptionBatchWords        int     `toml:"caption_batch_words"`
	CaptionFontSize          int     `toml:"caption_font_size"`
	CaptionFontFile          string  `toml:"caption_font_file"`
	ThumbnailSeconds         float64 `toml:"thumbnail_seconds"`
	ThumbnailWidth           int     `toml:"thumbnail_width"`
	ThumbnailHeight          int     `toml:"thumbnail_height"`
	SceneConcurrency         int     `toml:"scene_concurrency"`
	TolerateCaptionFailure   bool    `toml:"tolerate_caption_failure"`
	TolerateThumbnailFailure bool    `toml:"tolerate_thumbnail_failure"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	JobCompleted   bool   `toml:"job_completed"`
	JobFailed      bool   `toml:"job_failed"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for vidforge.
//
// Configuration sections by subsystem:
//   - Paths: staging/state/log directories and the admin API bind address
//   - Database: project store driver and DSN
//   - Queue: queue backend, worker count, lease and retry policy
//   - Redis: redis queue connection
//   - Providers: video generation providers (Veo, Kling)
//   - Narration: text-to-speech
//   - Storyboard: scene planning from a story idea
//   - Storage: object storage gateway
//   - Media: ffmpeg sync, transitions, music, captions, thumbnail
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Database      Database      `toml:"database"`
	Queue         Queue         `toml:"queue"`
	Redis         Redis         `toml:"redis"`
	Providers     Providers     `toml:"providers"`
	Narration     Narration     `toml:"narration"`
	Storyboard    Storyboard    `toml:"storyboard"`
	Storage       Storage       `toml:"storage"`
	Media         Media         `toml:"media"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/vidforge/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	// Missing .env files are expected outside development.
	for _, name := range []string{".env", ".env.local"} {
		_ = godotenv.Load(name)
	}

	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("vidforge.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.StagingDir, c.Paths.StateDir, c.Paths.LogDir}
	if c.Storage.Backend == "local" {
		dirs = append(dirs, c.Storage.LocalDir)
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LockPath returns the daemon lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "vidforge.lock")
}

// ProviderTimeout bounds a single provider generation call including polling.
func (c *Config) ProviderTimeout() time.Duration {
	return time.Duration(c.Providers.TimeoutSeconds) * time.Second
}

// RetainCompleted reports whether acknowledged queue messages are kept.
func (c *Config) RetainCompleted() bool {
	return c.Queue.CompletedRetention == RetentionRetain
}

// RetainFailed reports whether exhausted queue messages are kept in the dead-letter set.
func (c *Config) RetainFailed() bool {
	return c.Queue.FailedRetention == RetentionRetain
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
