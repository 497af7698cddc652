package media

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strings"

	"vidforge/internal/logging"
	"vidforge/internal/media/ffprobe"
	"vidforge/internal/services"
)

// FFmpeg wraps the ffmpeg and ffprobe binaries.
type FFmpeg struct {
	binary      string
	probeBinary string
	runner      Runner
	logger      *slog.Logger
}

// NewFFmpeg returns a wrapper using runner; nil runner means ExecRunner.
func NewFFmpeg(binary, probeBinary string, runner Runner, logger *slog.Logger) *FFmpeg {
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	if strings.TrimSpace(probeBinary) == "" {
		probeBinary = "ffprobe"
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &FFmpeg{
		binary:      binary,
		probeBinary: probeBinary,
		runner:      runner,
		logger:      logging.NewComponentLogger(logger, "ffmpeg"),
	}
}

// Run executes ffmpeg with args writing output. The output file is removed
// if ffmpeg fails.
func (f *FFmpeg) Run(ctx context.Context, operation, output string, args ...string) error {
	full := append([]string{"-hide_banner", "-nostdin", "-y", "-loglevel", "error"}, args...)
	full = append(full, output)
	logging.WithContext(ctx, f.logger).Debug("running ffmpeg",
		logging.String("operation", operation),
		logging.String("output_path", output),
		logging.String("args", strings.Join(full, " ")),
	)
	if _, err := f.runner.Run(ctx, f.binary, full...); err != nil {
		_ = os.Remove(output)
		return services.Wrap(services.ErrMediaProcessing, "", operation, "ffmpeg failed", err)
	}
	info, err := os.Stat(output)
	if err != nil {
		return services.Wrap(services.ErrMediaProcessing, "", operation, "ffmpeg produced no output", err)
	}
	if info.Size() == 0 {
		_ = os.Remove(output)
		return services.Wrap(services.ErrMediaProcessing, "", operation, "ffmpeg produced an empty file", nil)
	}
	return nil
}

// Probe inspects path with ffprobe.
func (f *FFmpeg) Probe(ctx context.Context, path string) (ffprobe.Result, error) {
	result, err := ffprobe.Inspect(ctx, f.runner, f.probeBinary, path)
	if err != nil {
		return ffprobe.Result{}, services.Wrap(services.ErrMediaProcessing, "", "probe", path, err)
	}
	return result, nil
}

// Duration returns the probed duration of path in seconds.
func (f *FFmpeg) Duration(ctx context.Context, path string) (float64, error) {
	result, err := f.Probe(ctx, path)
	if err != nil {
		return 0, err
	}
	d := result.DurationSeconds()
	if math.IsNaN(d) || d <= 0 {
		return 0, services.Wrap(services.ErrMediaProcessing, "", "probe", fmt.Sprintf("%s has no usable duration", path), nil)
	}
	return d, nil
}

// FormatSeconds renders seconds for ffmpeg arguments with millisecond precision.
func FormatSeconds(seconds float64) string {
	s := fmt.Sprintf("%.3f", seconds)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
