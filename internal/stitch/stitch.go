package stitch

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"vidforge/internal/captions"
	"vidforge/internal/fileutil"
	"vidforge/internal/logging"
	"vidforge/internal/media"
	"vidforge/internal/project"
	"vidforge/internal/services"
)

// Clip is one synced scene clip.
type Clip struct {
	Path            string
	DurationSeconds float64
}

// Options tunes the final assembly.
type Options struct {
	MusicVolume      float64
	ForegroundVolume float64
	CaptionBatch     int
	CaptionStyle     captions.Style
}

// Stitcher runs the assembly steps through ffmpeg.
type Stitcher struct {
	ffmpeg *media.FFmpeg
	opts   Options
	logger *slog.Logger
}

// New builds a stitcher.
func New(ffmpeg *media.FFmpeg, opts Options, logger *slog.Logger) *Stitcher {
	if opts.MusicVolume <= 0 {
		opts.MusicVolume = 0.3
	}
	if opts.ForegroundVolume <= 0 {
		opts.ForegroundVolume = 1.0
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Stitcher{ffmpeg: ffmpeg, opts: opts, logger: logging.NewComponentLogger(logger, "stitch")}
}

var encodeArgs = []string{
	"-c:v", "libx264", "-preset", "veryfast", "-pix_fmt", "yuv420p",
	"-c:a", "aac", "-b:a", "192k",
	"-movflags", "+faststart",
}

// CombineGraph builds the xfade and acrossfade chains for clips of the
// given durations and returns the expected total duration. Transition
// offsets are cumulative: clip k starts at the sum of the previous
// durations minus k overlaps.
func CombineGraph(durations []float64, transition string, overlap float64) (string, float64, error) {
	if len(durations) < 2 {
		return "", 0, fmt.Errorf("combine graph needs at least two clips, got %d", len(durations))
	}
	if overlap <= 0 {
		return "", 0, fmt.Errorf("transition overlap must be positive, got %s", media.FormatSeconds(overlap))
	}
	shortest := math.Inf(1)
	for _, d := range durations {
		shortest = math.Min(shortest, d)
	}
	if overlap >= shortest {
		return "", 0, fmt.Errorf("transition overlap %ss is not shorter than the shortest clip (%ss)",
			media.FormatSeconds(overlap), media.FormatSeconds(shortest))
	}
	if strings.TrimSpace(transition) == "" {
		transition = "fade"
	}

	var (
		video   []string
		audio   []string
		elapsed = durations[0]
		prevV   = "[0:v]"
		prevA   = "[0:a]"
	)
	for k := 1; k < len(durations); k++ {
		offset := elapsed - float64(k)*overlap
		outV, outA := fmt.Sprintf("[v%d]", k), fmt.Sprintf("[a%d]", k)
		video = append(video, fmt.Sprintf("%s[%d:v]xfade=transition=%s:duration=%s:offset=%s%s",
			prevV, k, transition, media.FormatSeconds(overlap), media.FormatSeconds(offset), outV))
		audio = append(audio, fmt.Sprintf("%s[%d:a]acrossfade=d=%s%s", prevA, k, media.FormatSeconds(overlap), outA))
		prevV, prevA = outV, outA
		elapsed += durations[k]
	}
	total := elapsed - float64(len(durations)-1)*overlap
	graph := strings.Join(video, ";") + ";" + strings.Join(audio, ";")
	return graph, total, nil
}

// Combine joins clips into out. A single clip is copied byte for byte.
func (s *Stitcher) Combine(ctx context.Context, clips []Clip, out, transition string, overlap float64) (float64, error) {
	const op = "combine clips"
	switch len(clips) {
	case 0:
		return 0, services.Wrap(services.ErrValidation, string(project.StageStitching), op, "no clips to combine", nil)
	case 1:
		if err := fileutil.CopyFile(clips[0].Path, out); err != nil {
			return 0, services.Wrap(services.ErrMediaProcessing, string(project.StageStitching), op, "copy single clip", err)
		}
		return clips[0].DurationSeconds, nil
	}

	durations := make([]float64, len(clips))
	args := make([]string, 0, len(clips)*2+len(encodeArgs)+8)
	for i, clip := range clips {
		durations[i] = clip.DurationSeconds
		args = append(args, "-i", clip.Path)
	}
	graph, total, err := CombineGraph(durations, transition, overlap)
	if err != nil {
		return 0, services.Wrap(services.ErrValidation, string(project.StageStitching), op, "", err)
	}
	last := len(clips) - 1
	args = append(args, "-filter_complex", graph,
		"-map", fmt.Sprintf("[v%d]", last), "-map", fmt.Sprintf("[a%d]", last))
	args = append(args, encodeArgs...)
	if err := s.ffmpeg.Run(ctx, op, out, args...); err != nil {
		return 0, err
	}
	logging.WithContext(ctx, s.logger).Debug("clips combined",
		logging.Int("clip_count", len(clips)),
		logging.Float64("expected_seconds", total),
	)
	return total, nil
}

// MixArgs builds the music mix arguments. The music loops and is trimmed
// to the video length; amix follows the first input so the output never
// outlasts the video.
func MixArgs(video, music string, videoSeconds, musicVolume, foregroundVolume float64) []string {
	length := media.FormatSeconds(videoSeconds)
	graph := fmt.Sprintf(
		"[1:a]atrim=0:%s,asetpts=PTS-STARTPTS,volume=%s[music];[0:a]volume=%s[fg];[fg][music]amix=inputs=2:duration=first:dropout_transition=0:normalize=0[a]",
		length, formatVolume(musicVolume), formatVolume(foregroundVolume),
	)
	return []string{
		"-i", video,
		"-stream_loop", "-1", "-i", music,
		"-filter_complex", graph,
		"-map", "0:v", "-map", "[a]",
		"-c:v", "copy",
		"-c:a", "aac", "-b:a", "192k",
		"-t", length,
	}
}

// MixMusic lays music under the video's audio.
func (s *Stitcher) MixMusic(ctx context.Context, video, music, out string, videoSeconds float64) error {
	if videoSeconds <= 0 {
		return services.Wrap(services.ErrValidation, string(project.StageStitching), "mix music", "video duration unknown", nil)
	}
	return s.ffmpeg.Run(ctx, "mix music", out, MixArgs(video, music, videoSeconds, s.opts.MusicVolume, s.opts.ForegroundVolume)...)
}

// CaptionPasses returns one drawtext filter chain per batch.
func CaptionPasses(words []captions.Word, batch int, style captions.Style) []string {
	var passes []string
	for _, group := range captions.Batch(words, batch) {
		passes = append(passes, strings.Join(captions.Filters(group, style), ","))
	}
	return passes
}

// BurnCaptions draws words onto video. Each pass reads the previous pass's
// output; intermediates are removed when done.
func (s *Stitcher) BurnCaptions(ctx context.Context, video string, words []captions.Word, out string) error {
	passes := CaptionPasses(words, s.opts.CaptionBatch, s.opts.CaptionStyle)
	if len(passes) == 0 {
		if err := fileutil.CopyFile(video, out); err != nil {
			return services.Wrap(services.ErrMediaProcessing, string(project.StageStitching), "burn captions", "copy uncaptioned video", err)
		}
		return nil
	}

	input := video
	var intermediates []string
	defer func() {
		for _, path := range intermediates {
			_ = os.Remove(path)
		}
	}()
	for i, chain := range passes {
		target := out
		if i < len(passes)-1 {
			target = filepath.Join(filepath.Dir(out), fmt.Sprintf("captions-pass-%02d.mp4", i+1))
			intermediates = append(intermediates, target)
		}
		args := []string{
			"-i", input,
			"-vf", chain,
			"-c:v", "libx264", "-preset", "veryfast", "-pix_fmt", "yuv420p",
			"-c:a", "copy",
		}
		if err := s.ffmpeg.Run(ctx, fmt.Sprintf("burn captions pass %d/%d", i+1, len(passes)), target, args...); err != nil {
			return err
		}
		input = target
	}
	logging.WithContext(ctx, s.logger).Debug("captions burned",
		logging.Int("word_count", len(words)),
		logging.Int("pass_count", len(passes)),
	)
	return nil
}

// ThumbnailArgs grabs one frame at atSeconds, letterboxed to width x height.
func ThumbnailArgs(video string, atSeconds float64, width, height int) []string {
	w, h := strconv.Itoa(width), strconv.Itoa(height)
	return []string{
		"-ss", media.FormatSeconds(atSeconds),
		"-i", video,
		"-frames:v", "1",
		"-vf", fmt.Sprintf("scale=%s:%s:force_original_aspect_ratio=decrease,pad=%s:%s:(ow-iw)/2:(oh-ih)/2", w, h, w, h),
		"-q:v", "2",
	}
}

// Thumbnail writes a poster frame for video.
func (s *Stitcher) Thumbnail(ctx context.Context, video, out string, atSeconds float64, width, height int) error {
	if width <= 0 || height <= 0 {
		return services.Wrap(services.ErrValidation, string(project.StageStitching), "thumbnail", fmt.Sprintf("invalid size %dx%d", width, height), nil)
	}
	if atSeconds < 0 {
		atSeconds = 0
	}
	return s.ffmpeg.Run(ctx, "thumbnail", out, ThumbnailArgs(video, atSeconds, width, height)...)
}

func formatVolume(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
