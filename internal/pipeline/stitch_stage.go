package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"vidforge/internal/captions"
	"vidforge/internal/config"
	"vidforge/internal/logging"
	"vidforge/internal/media"
	"vidforge/internal/project"
	"vidforge/internal/services"
	"vidforge/internal/stage"
	"vidforge/internal/stitch"
	"vidforge/internal/storage"
)

// stitchStage handles STITCHING.
type stitchStage struct {
	cfg      *config.Config
	stitcher *stitch.Stitcher
	ffmpeg   *media.FFmpeg
	storage  storage.Gateway
	logger   *slog.Logger
}

// Prepare lines up every scene of the final cut. Scenes this job did not
// render are fetched from storage.
func (s *stitchStage) Prepare(ctx context.Context, run *stage.Run) error {
	board := run.Storyboard()
	run.Clips = run.Clips[:0]
	for _, scene := range board.Scenes {
		voiceover := strings.TrimSpace(scene.Voiceover)
		if voiceover == "" {
			voiceover = strings.TrimSpace(scene.Description)
		}
		if i, ok := run.RenderedScene(scene.SceneNumber); ok {
			out := run.Rendered[i]
			run.Clips = append(run.Clips, stage.SceneClip{
				SceneNumber:      scene.SceneNumber,
				Voiceover:        voiceover,
				Path:             out.SyncedPath,
				NarrationPath:    out.NarrationPath,
				DurationSeconds:  out.DurationSeconds,
				NarrationSeconds: out.NarrationSeconds,
			})
			continue
		}
		clip, err := s.fetchScene(ctx, run, scene)
		if err != nil {
			return err
		}
		clip.Voiceover = voiceover
		run.Clips = append(run.Clips, clip)
	}

	music, err := s.fetchMusic(ctx, run)
	if err != nil {
		return err
	}
	run.MusicPath = music
	return nil
}

func (s *stitchStage) fetchScene(ctx context.Context, run *stage.Run, scene project.Scene) (stage.SceneClip, error) {
	bucket := s.cfg.Storage.Bucket
	local := run.Workdir.File(fmt.Sprintf("scene-%03d.reused.mp4", scene.SceneNumber))
	key := scene.VideoKey
	fetched := false
	if key != "" {
		_, err := s.storage.Download(ctx, bucket, key, local)
		switch {
		case err == nil:
			fetched = true
		case !errors.Is(err, services.ErrNotFound):
			return stage.SceneClip{}, err
		}
	}
	if !fetched {
		prefix := storage.ScenePrefix(run.Video.ID, scene.SceneNumber)
		found, ok, err := s.storage.FindByExtension(ctx, bucket, prefix, ".mp4")
		if err != nil {
			return stage.SceneClip{}, err
		}
		if !ok {
			return stage.SceneClip{}, services.Wrap(services.ErrNotFound, string(project.StageStitching), "fetch scene",
				fmt.Sprintf("no stored clip for scene %d under %s", scene.SceneNumber, prefix), nil)
		}
		if _, err := s.storage.Download(ctx, bucket, found, local); err != nil {
			return stage.SceneClip{}, err
		}
		key = found
	}

	duration := scene.DurationSeconds
	if duration <= 0 {
		probed, err := s.ffmpeg.Duration(ctx, local)
		if err != nil {
			return stage.SceneClip{}, err
		}
		duration = probed
	}
	return stage.SceneClip{
		SceneNumber:      scene.SceneNumber,
		Path:             local,
		DurationSeconds:  duration,
		NarrationSeconds: scene.NarrationSeconds,
		Reused:           true,
		VideoKey:         key,
		AudioKey:         scene.AudioKey,
	}, nil
}

// fetchMusic downloads the music bed. The job's key wins over the default
// key; with neither, the newest track under the music prefix is used. No
// music at all is allowed.
func (s *stitchStage) fetchMusic(ctx context.Context, run *stage.Run) (string, error) {
	bucket := s.cfg.Storage.Bucket
	key := strings.TrimSpace(run.Job.Params.MusicKey)
	if key == "" {
		key = strings.TrimSpace(s.cfg.Storage.DefaultMusicKey)
	}
	if key == "" && s.cfg.Storage.MusicPrefix != "" {
		found, ok, err := s.storage.FindByExtension(ctx, bucket, s.cfg.Storage.MusicPrefix, ".mp3")
		if err != nil {
			return "", err
		}
		if ok {
			key = found
		}
	}
	if key == "" {
		return "", nil
	}
	local := run.Workdir.File("music" + filepath.Ext(key))
	return s.storage.Download(ctx, bucket, key, local)
}

func (s *stitchStage) Execute(ctx context.Context, run *stage.Run) error {
	logger := logging.WithContext(ctx, s.logger)
	opts := s.cfg.Media
	overlap := opts.TransitionSeconds

	clips := make([]stitch.Clip, 0, len(run.Clips))
	timing := make([]captions.Scene, 0, len(run.Clips))
	for _, clip := range run.Clips {
		clips = append(clips, stitch.Clip{Path: clip.Path, DurationSeconds: clip.DurationSeconds})
		timing = append(timing, captions.Scene{
			Voiceover:        clip.Voiceover,
			NarrationSeconds: clip.NarrationSeconds,
			DurationSeconds:  clip.DurationSeconds,
		})
	}

	current := run.Workdir.File("combined.mp4")
	total, err := s.stitcher.Combine(ctx, clips, current, opts.Transition, overlap)
	if err != nil {
		return err
	}

	if run.MusicPath != "" {
		mixed := run.Workdir.File("mixed.mp4")
		if err := s.stitcher.MixMusic(ctx, current, run.MusicPath, mixed, total); err != nil {
			return err
		}
		current = mixed
	}

	captioned := run.Workdir.File("final.mp4")
	if err := s.stitcher.BurnCaptions(ctx, current, captions.Estimate(timing, overlap), captioned); err != nil {
		if !opts.TolerateCaptionFailure {
			return err
		}
		logging.WarnWithContext(logger, "caption burn failed; publishing without captions", "captions_skipped",
			logging.Error(err),
			logging.String(logging.FieldImpact, "final video has no captions"),
		)
	} else {
		current = captioned
	}
	run.FinalPath = current

	final, err := s.ffmpeg.Duration(ctx, run.FinalPath)
	if err != nil {
		return err
	}
	run.FinalSeconds = final

	at := opts.ThumbnailSeconds
	if at <= 0 || at >= final {
		at = final / 2
	}
	thumb := run.Workdir.File("thumbnail.jpg")
	if err := s.stitcher.Thumbnail(ctx, run.FinalPath, thumb, at, opts.ThumbnailWidth, opts.ThumbnailHeight); err != nil {
		if !opts.TolerateThumbnailFailure {
			return err
		}
		logging.WarnWithContext(logger, "thumbnail failed; publishing without one", "thumbnail_skipped",
			logging.Error(err),
			logging.String(logging.FieldImpact, "result has no thumbnail"),
		)
	} else {
		run.ThumbnailPath = thumb
	}
	return nil
}

func (s *stitchStage) HealthCheck(context.Context) stage.Health {
	if s.stitcher == nil || s.ffmpeg == nil {
		return stage.Unhealthy("stitching", "ffmpeg not configured")
	}
	return stage.Healthy("stitching")
}

// uploadStage handles UPLOADING.
type uploadStage struct {
	cfg     *config.Config
	storage storage.Gateway
}

func (s *uploadStage) Prepare(_ context.Context, run *stage.Run) error {
	if run.FinalPath == "" {
		return services.Wrap(services.ErrValidation, string(project.StageUploading), "upload", "no final video", nil)
	}
	return nil
}

func (s *uploadStage) Execute(ctx context.Context, run *stage.Run) error {
	bucket := s.cfg.Storage.Bucket
	videoID, jobID := run.Video.ID, run.Job.ID

	scenes := make([]project.SceneResult, 0, len(run.Clips))
	for i := range run.Clips {
		clip := &run.Clips[i]
		result := project.SceneResult{SceneNumber: clip.SceneNumber, DurationSeconds: clip.DurationSeconds}
		if clip.Reused {
			result.VideoKey = clip.VideoKey
			result.VideoURL = s.storage.PublicURL(bucket, clip.VideoKey)
			if clip.AudioKey != "" {
				result.AudioKey = clip.AudioKey
				result.AudioURL = s.storage.PublicURL(bucket, clip.AudioKey)
			}
			scenes = append(scenes, result)
			continue
		}
		clip.VideoKey = storage.SceneVideoKey(videoID, jobID, clip.SceneNumber)
		url, err := s.storage.Upload(ctx, clip.Path, bucket, clip.VideoKey)
		if err != nil {
			return err
		}
		result.VideoKey, result.VideoURL = clip.VideoKey, url
		if clip.NarrationPath != "" {
			clip.AudioKey = storage.SceneAudioKey(videoID, jobID, clip.SceneNumber)
			url, err := s.storage.Upload(ctx, clip.NarrationPath, bucket, clip.AudioKey)
			if err != nil {
				return err
			}
			result.AudioKey, result.AudioURL = clip.AudioKey, url
		}
		scenes = append(scenes, result)
	}

	finalKey := storage.FinalVideoKey(videoID, jobID)
	finalURL, err := s.storage.Upload(ctx, run.FinalPath, bucket, finalKey)
	if err != nil {
		return err
	}
	result := &project.Result{
		VideoKey:        finalKey,
		VideoURL:        finalURL,
		DurationSeconds: run.FinalSeconds,
		Scenes:          scenes,
	}
	if run.ThumbnailPath != "" {
		thumbKey := storage.ThumbnailKey(videoID, jobID)
		thumbURL, err := s.storage.Upload(ctx, run.ThumbnailPath, bucket, thumbKey)
		if err != nil {
			return err
		}
		result.ThumbnailKey, result.ThumbnailURL = thumbKey, thumbURL
	}
	run.Result = result
	return nil
}

func (s *uploadStage) HealthCheck(ctx context.Context) stage.Health {
	const name = "upload"
	if s.storage == nil {
		return stage.Unhealthy(name, "storage gateway not configured")
	}
	if err := s.storage.Ping(ctx, s.cfg.Storage.Bucket); err != nil {
		return stage.Unhealthy(name, err.Error())
	}
	return stage.Healthy(name)
}
