package render

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"

	"vidforge/internal/logging"
	"vidforge/internal/project"
	"vidforge/internal/services"
)

// DefaultFrameRate is the frame rate every synced clip is conformed to.
const DefaultFrameRate = 24

// StretchFactor returns how much the video must be slowed to cover the
// narration. Clips are only ever stretched, never sped up.
func StretchFactor(videoSeconds, audioSeconds float64) float64 {
	if videoSeconds <= 0 || audioSeconds <= videoSeconds {
		return 1
	}
	return audioSeconds / videoSeconds
}

// SyncArgs builds the ffmpeg arguments that conform video to audio. The
// output path is appended by media.FFmpeg.Run.
func SyncArgs(videoPath, audioPath string, factor float64, frameRate int) []string {
	if frameRate <= 0 {
		frameRate = DefaultFrameRate
	}
	videoFilter := "fps=" + strconv.Itoa(frameRate)
	if factor > 1 {
		videoFilter = "setpts=" + strconv.FormatFloat(factor, 'f', 6, 64) + "*PTS," + videoFilter
	}
	graph := fmt.Sprintf("[0:v]%s[v];[1:a]apad[a]", videoFilter)
	return []string{
		"-i", videoPath,
		"-i", audioPath,
		"-filter_complex", graph,
		"-map", "[v]", "-map", "[a]",
		"-c:v", "libx264", "-preset", "veryfast", "-pix_fmt", "yuv420p",
		"-c:a", "aac", "-b:a", "192k",
		"-shortest",
	}
}

// SyncScene conforms one scene's clip to its narration and records the
// probed durations on out.
func (r *Renderer) SyncScene(ctx context.Context, workdir string, out *SceneOutput) error {
	stage := string(project.StageSynthesizingAudio)
	videoSeconds, err := r.ffmpeg.Duration(ctx, out.VideoPath)
	if err != nil {
		return services.Wrap(services.ErrMediaProcessing, stage, fmt.Sprintf("probe scene %d video", out.SceneNumber), "", err)
	}
	audioSeconds, err := r.ffmpeg.Duration(ctx, out.NarrationPath)
	if err != nil {
		return services.Wrap(services.ErrMediaProcessing, stage, fmt.Sprintf("probe scene %d narration", out.SceneNumber), "", err)
	}
	factor := StretchFactor(videoSeconds, audioSeconds)
	synced := filepath.Join(workdir, fmt.Sprintf("scene-%03d.synced.mp4", out.SceneNumber))
	if err := r.ffmpeg.Run(ctx, "sync scene", synced, SyncArgs(out.VideoPath, out.NarrationPath, factor, r.frameRate)...); err != nil {
		return err
	}
	duration, err := r.ffmpeg.Duration(ctx, synced)
	if err != nil {
		return services.Wrap(services.ErrMediaProcessing, stage, fmt.Sprintf("probe scene %d synced clip", out.SceneNumber), "", err)
	}
	out.VideoSeconds = videoSeconds
	out.NarrationSeconds = audioSeconds
	out.StretchFactor = factor
	out.SyncedPath = synced
	out.DurationSeconds = duration

	logging.WithContext(ctx, r.logger).Debug("scene synced",
		logging.Int("scene_number", out.SceneNumber),
		logging.Float64("video_seconds", videoSeconds),
		logging.Float64("narration_seconds", audioSeconds),
		logging.Float64("stretch_factor", factor),
		logging.Float64("duration_seconds", duration),
	)
	return nil
}

// SyncAll syncs every output in order.
func (r *Renderer) SyncAll(ctx context.Context, workdir string, outputs []SceneOutput) error {
	for i := range outputs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.SyncScene(ctx, workdir, &outputs[i]); err != nil {
			return err
		}
	}
	return nil
}
