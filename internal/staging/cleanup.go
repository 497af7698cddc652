package staging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"vidforge/internal/logging"
)

// JobDirPrefix names every per-job workdir.
const JobDirPrefix = "job-"

// Workdir is an exclusive scratch directory for one job attempt.
type Workdir struct {
	Path string
}

// JobDir returns the workdir path for jobID under stagingDir.
func JobDir(stagingDir, jobID string) string {
	return filepath.Join(stagingDir, JobDirPrefix+jobID)
}

// Acquire creates a fresh workdir for jobID. Leftovers from an earlier
// attempt are removed first so every attempt starts clean.
func Acquire(stagingDir, jobID string) (*Workdir, error) {
	stagingDir = strings.TrimSpace(stagingDir)
	if stagingDir == "" {
		return nil, fmt.Errorf("staging dir not configured")
	}
	if strings.TrimSpace(jobID) == "" || strings.ContainsAny(jobID, `/\`) {
		return nil, fmt.Errorf("invalid job id %q", jobID)
	}
	path := JobDir(stagingDir, jobID)
	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("clear workdir: %w", err)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create workdir: %w", err)
	}
	return &Workdir{Path: path}, nil
}

// File returns a path inside the workdir.
func (w *Workdir) File(name string) string {
	return filepath.Join(w.Path, name)
}

// Release removes the workdir and everything in it.
func (w *Workdir) Release() error {
	if w == nil || w.Path == "" {
		return nil
	}
	return os.RemoveAll(w.Path)
}

// CleanStaleResult contains the outcome of a stale directory cleanup operation.
type CleanStaleResult struct {
	Removed []string
	Errors  []CleanupError
}

// CleanupError pairs a directory path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// CleanStale removes job workdirs older than maxAge. Directories that do
// not carry the job prefix are left alone.
func CleanStale(ctx context.Context, stagingDir string, maxAge time.Duration, logger *slog.Logger) CleanStaleResult {
	result := CleanStaleResult{}
	dirs, err := ListDirectories(stagingDir)
	if err != nil {
		result.Errors = append(result.Errors, CleanupError{Path: stagingDir, Error: err})
		return result
	}
	cutoff := time.Now().Add(-maxAge)
	for _, dir := range dirs {
		if ctx.Err() != nil {
			break
		}
		if !strings.HasPrefix(dir.Name, JobDirPrefix) || !dir.ModTime.Before(cutoff) {
			continue
		}
		if err := os.RemoveAll(dir.Path); err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: dir.Path, Error: err})
			if logger != nil {
				logging.WarnWithContext(logger, "failed to remove stale workdir", "staging_cleanup_failed",
					logging.String("path", dir.Path),
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check staging_dir permissions"),
					logging.String(logging.FieldImpact, "disk space not reclaimed"),
				)
			}
			continue
		}
		result.Removed = append(result.Removed, dir.Path)
		if logger != nil {
			logger.Info("removed stale workdir",
				logging.String("path", dir.Path),
				logging.Duration("age", time.Since(dir.ModTime)),
				logging.Int64("size_bytes", dir.Size),
				logging.String(logging.FieldEventType, "staging_cleanup"),
			)
		}
	}
	return result
}

// DirInfo contains metadata about a staging directory.
type DirInfo struct {
	Name    string
	Path    string
	ModTime time.Time
	Size    int64
}

// ListDirectories returns the directories directly under stagingDir. A
// missing or unset staging dir yields no entries.
func ListDirectories(stagingDir string) ([]DirInfo, error) {
	stagingDir = strings.TrimSpace(stagingDir)
	if stagingDir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(stagingDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var dirs []DirInfo
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(stagingDir, entry.Name())
		size, _ := dirSize(path)
		dirs = append(dirs, DirInfo{Name: entry.Name(), Path: path, ModTime: info.ModTime(), Size: size})
	}
	return dirs, nil
}

func dirSize(path string) (int64, error) {
	var size int64
	err := filepath.WalkDir(path, func(_ string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			if info, infoErr := d.Info(); infoErr == nil {
				size += info.Size()
			}
		}
		return nil
	})
	return size, err
}
