package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"vidforge/internal/config"
)

// FileName is the worker log file inside paths.log_dir.
const FileName = "vidforge.log"

const (
	pollInterval = 250 * time.Millisecond
	maxLineBytes = 1024 * 1024
)

// FilePath returns the worker log path for cfg, or "" when file logging is off.
func FilePath(cfg *config.Config) string {
	if cfg == nil || strings.TrimSpace(cfg.Paths.LogDir) == "" {
		return ""
	}
	return filepath.Join(cfg.Paths.LogDir, FileName)
}

// TailOptions selects which lines Tail returns. A negative Offset means the
// last Limit lines. Match keeps only lines containing that substring.
type TailOptions struct {
	Offset int64
	Limit  int
	Match  string
	Follow bool
	Wait   time.Duration
}

// TailResult holds the lines read and the offset to resume from.
type TailResult struct {
	Lines  []string
	Offset int64
}

// Tail reads path according to opts. A missing file yields no lines and
// offset 0 so a later call picks the file up once the worker creates it.
func Tail(ctx context.Context, path string, opts TailOptions) (TailResult, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return TailResult{}, nil
	}
	if err != nil {
		return TailResult{Offset: opts.Offset}, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return TailResult{Offset: opts.Offset}, fmt.Errorf("log path %q is a directory", path)
	}
	wait := max(opts.Wait, 0)
	keep := matcher(opts.Match)

	var result TailResult
	if opts.Offset < 0 {
		result, err = lastLines(path, opts.Limit, keep)
	} else {
		// A truncated or rotated file restarts from its current end.
		offset := opts.Offset
		if offset > info.Size() {
			offset = info.Size()
		}
		result, err = linesFrom(path, offset, keep)
	}
	if err != nil {
		return result, err
	}
	if opts.Follow && wait > 0 && len(result.Lines) == 0 {
		return waitForLines(ctx, path, result.Offset, wait, keep)
	}
	return result, nil
}

// Follow emits the lines selected by start, then streams lines appended
// after them until ctx is done. The returned error is nil when ctx ends the
// stream.
func Follow(ctx context.Context, path string, start TailOptions, emit func(string)) error {
	start.Follow = false
	result, err := Tail(ctx, path, start)
	if err != nil {
		return err
	}
	for {
		for _, line := range result.Lines {
			emit(line)
		}
		result, err = Tail(ctx, path, TailOptions{Offset: result.Offset, Match: start.Match, Follow: true, Wait: 5 * time.Second})
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func matcher(match string) func(string) bool {
	match = strings.TrimSpace(match)
	if match == "" {
		return func(string) bool { return true }
	}
	return func(line string) bool { return strings.Contains(line, match) }
}

func lastLines(path string, limit int, keep func(string) bool) (TailResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return TailResult{}, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if limit <= 0 {
		end, err := file.Seek(0, io.SeekEnd)
		if err != nil {
			return TailResult{}, fmt.Errorf("seek log file: %w", err)
		}
		return TailResult{Offset: end}, nil
	}

	ring := make([]string, limit)
	count, next := 0, 0
	end, err := scan(file, func(line string) {
		if !keep(line) {
			return
		}
		ring[next] = line
		next = (next + 1) % limit
		count = min(count+1, limit)
	})
	if err != nil {
		return TailResult{}, err
	}

	lines := make([]string, 0, count)
	start := 0
	if count == limit {
		start = next
	}
	for i := range count {
		lines = append(lines, ring[(start+i)%limit])
	}
	return TailResult{Lines: lines, Offset: end}, nil
}

func linesFrom(path string, offset int64, keep func(string) bool) (TailResult, error) {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return TailResult{}, nil
	}
	if err != nil {
		return TailResult{Offset: offset}, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return TailResult{Offset: offset}, fmt.Errorf("seek log file: %w", err)
	}
	var lines []string
	end, err := scan(file, func(line string) {
		if keep(line) {
			lines = append(lines, line)
		}
	})
	if err != nil {
		return TailResult{Offset: offset}, err
	}
	return TailResult{Lines: lines, Offset: end}, nil
}

// scan feeds every complete line to fn and returns the offset after the last
// one. A trailing partial line is left for the next read.
func scan(file *os.File, fn func(string)) (int64, error) {
	start, err := file.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, fmt.Errorf("determine log offset: %w", err)
	}
	reader := bufio.NewReaderSize(file, 64*1024)
	consumed := start
	for {
		line, err := reader.ReadString('\n')
		if err == nil {
			consumed += int64(len(line))
			if len(line) <= maxLineBytes {
				fn(strings.TrimRight(line, "\r\n"))
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return consumed, nil
		}
		return consumed, fmt.Errorf("read log file: %w", err)
	}
}

func waitForLines(ctx context.Context, path string, offset int64, wait time.Duration, keep func(string) bool) (TailResult, error) {
	deadline := time.Now().Add(wait)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		result, err := linesFrom(path, offset, keep)
		if err != nil || len(result.Lines) > 0 || time.Now().After(deadline) {
			return result, err
		}
		offset = result.Offset
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-ticker.C:
		}
	}
}
