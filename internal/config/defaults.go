package config

const (
	defaultStagingDir          = "~/.local/share/vidforge/staging"
	defaultStateDir            = "~/.local/share/vidforge"
	defaultLogDir              = "~/.local/share/vidforge/logs"
	defaultAPIBind             = "127.0.0.1:7690"
	defaultStagingMaxAgeHours  = 24
	defaultDatabaseDriver      = "sqlite"
	defaultQueueBackend        = "sql"
	defaultQueueName           = "video-processing"
	defaultQueueWorkers        = 2
	defaultQueuePollInterval   = 2
	defaultQueueLeaseSeconds   = 120
	defaultHeartbeatInterval   = 30
	defaultMaxAttempts         = 3
	defaultBackoffBaseSeconds  = 10
	defaultBackoffMultiplier   = 2.0
	defaultCompletedRetention  = RetentionPurge
	defaultFailedRetention     = RetentionRetain
	defaultRedisAddr           = "127.0.0.1:6379"
	defaultRedisKeyPrefix      = "vidforge"
	defaultProviderTimeout     = 600
	defaultProviderModel       = "veo-3.0-fast"
	defaultVeoPollSeconds      = 10
	defaultKlingBaseURL        = "https://api.klingai.com"
	defaultKlingPollSeconds    = 10
	defaultNarrationModel      = "tts-1"
	defaultNarrationFormat     = "mp3"
	defaultNarrationVoice      = "alloy"
	defaultStoryboardBackend   = "gemini"
	defaultStoryboardModel     = "gemini-2.5-flash"
	defaultStoryboardMaxScenes = 5
	defaultStorageBackend      = "local"
	defaultStorageBucket       = "videos"
	defaultStorageLocalDir     = "~/.local/share/vidforge/objects"
	defaultMusicPrefix         = "music/"
	defaultFFmpegBinary        = "ffmpeg"
	defaultFFprobeBinary       = "ffprobe"
	defaultFrameRate           = 24
	defaultTransition          = "fade"
	defaultTransitionSeconds   = 1.0
	defaultMusicVolume         = 0.3
	defaultForegroundVolume    = 1.0
	defaultCaptionBatchWords   = 40
	defaultCaptionFontSize     = 48
	defaultThumbnailSeconds    = 1.0
	defaultThumbnailWidth      = 1280
	defaultThumbnailHeight     = 720
	defaultSceneConcurrency    = 3
	defaultAspectRatio         = "16:9"
	defaultNotifyTimeout       = 10
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Retention policies accepted by queue.completed_retention and queue.failed_retention.
const (
	RetentionRetain = "retain"
	RetentionPurge  = "purge"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir:         defaultStagingDir,
			StateDir:           defaultStateDir,
			LogDir:             defaultLogDir,
			APIBind:            defaultAPIBind,
			StagingMaxAgeHours: defaultStagingMaxAgeHours,
		},
		Database: Database{
			Driver: defaultDatabaseDriver,
		},
		Queue: Queue{
			Backend:            defaultQueueBackend,
			Name:               defaultQueueName,
			Workers:            defaultQueueWorkers,
			PollInterval:       defaultQueuePollInterval,
			LeaseSeconds:       defaultQueueLeaseSeconds,
			HeartbeatInterval:  defaultHeartbeatInterval,
			MaxAttempts:        defaultMaxAttempts,
			BackoffBaseSeconds: defaultBackoffBaseSeconds,
			BackoffMultiplier:  defaultBackoffMultiplier,
			CompletedRetention: defaultCompletedRetention,
			FailedRetention:    defaultFailedRetention,
		},
		Redis: Redis{
			Addr:      defaultRedisAddr,
			KeyPrefix: defaultRedisKeyPrefix,
		},
		Providers: Providers{
			TimeoutSeconds: defaultProviderTimeout,
			Veo: Veo{
				PollSeconds: defaultVeoPollSeconds,
			},
			Kling: Kling{
				BaseURL:     defaultKlingBaseURL,
				PollSeconds: defaultKlingPollSeconds,
			},
			DefaultModel:       defaultProviderModel,
			DefaultAspectRatio: defaultAspectRatio,
		},
		Narration: Narration{
			Model:        defaultNarrationModel,
			Format:       defaultNarrationFormat,
			DefaultVoice: defaultNarrationVoice,
		},
		Storyboard: Storyboard{
			Enabled:   true,
			Backend:   defaultStoryboardBackend,
			Model:     defaultStoryboardModel,
			MaxScenes: defaultStoryboardMaxScenes,
		},
		Storage: Storage{
			Backend:     defaultStorageBackend,
			Bucket:      defaultStorageBucket,
			LocalDir:    defaultStorageLocalDir,
			MusicPrefix: defaultMusicPrefix,
		},
		Media: Media{
			FFmpegBinary:      defaultFFmpegBinary,
			FFprobeBinary:     defaultFFprobeBinary,
			FrameRate:         defaultFrameRate,
			Transition:        defaultTransition,
			TransitionSeconds: defaultTransitionSeconds,
			MusicVolume:       defaultMusicVolume,
			ForegroundVolume:  defaultForegroundVolume,
			CaptionBatchWords: defaultCaptionBatchWords,
			CaptionFontSize:   defaultCaptionFontSize,
			ThumbnailSeconds:  defaultThumbnailSeconds,
			ThumbnailWidth:    defaultThumbnailWidth,
			ThumbnailHeight:   defaultThumbnailHeight,
			SceneConcurrency:  defaultSceneConcurrency,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			JobCompleted:   true,
			JobFailed:      true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
