package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"vidforge/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Storage is local, the queue is SQL backed and the database is a temp
// SQLite file.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StagingDir = filepath.Join(base, "staging")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Database.Driver = "sqlite"
	cfgVal.Database.DSN = filepath.Join(base, "state", "vidforge.db")
	cfgVal.Queue.Backend = "sql"
	cfgVal.Storage.Backend = "local"
	cfgVal.Storage.LocalDir = filepath.Join(base, "objects")
	cfgVal.Storage.DefaultMusicKey = ""
	cfgVal.Providers.Veo.APIKey = "test"
	cfgVal.Narration.APIKey = "test"
	cfgVal.Notifications.NtfyTopic = ""

	builder := &configBuilder{t: t, baseDir: base, cfg: &cfgVal}
	for _, opt := range opts {
		opt(builder)
	}
	for _, dir := range []string{cfgVal.Paths.StagingDir, cfgVal.Paths.StateDir, cfgVal.Storage.LocalDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}
	return builder.cfg
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH for the rest of the test. If names is empty, ffmpeg
// and ffprobe are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{b.cfg.Media.FFmpegBinary, b.cfg.Media.FFprobeBinary}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		for _, name := range names {
			if err := os.WriteFile(filepath.Join(binDir, name), []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}
		b.t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
}
