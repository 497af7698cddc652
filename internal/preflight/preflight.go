package preflight

import (
	"context"

	"vidforge/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Targets are the backends RunAll probes. Nil entries are skipped.
type Targets struct {
	Database PingFunc
	Storage  PingFunc
	Queue    PingFunc
}

// RunAll executes every preflight check for cfg.
func RunAll(ctx context.Context, cfg *config.Config, targets Targets) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	results = append(results, CheckBinaries(cfg)...)
	results = append(results, CheckDirectoryAccess("Staging directory", cfg.Paths.StagingDir))
	if cfg.Storage.Backend == "local" {
		results = append(results, CheckDirectoryAccess("Storage directory", cfg.Storage.LocalDir))
	}
	if targets.Database != nil {
		results = append(results, CheckPing(ctx, "Database", cfg.Database.Driver, targets.Database))
	}
	if targets.Storage != nil {
		results = append(results, CheckPing(ctx, "Storage", cfg.Storage.Backend+":"+cfg.Storage.Bucket, targets.Storage))
	}
	if targets.Queue != nil {
		results = append(results, CheckPing(ctx, "Queue", cfg.Queue.Backend, targets.Queue))
	}
	results = append(results, CheckProviders(cfg)...)
	return results
}

// Failed returns the checks that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
