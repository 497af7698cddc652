package project

import (
	"fmt"
	"sort"
	"time"
)

// JobType names the kind of work a job performs.
type JobType string

const (
	JobCreateVideo     JobType = "CREATE_VIDEO"
	JobUpdateScene     JobType = "UPDATE_SCENE"
	JobRegenerateVideo JobType = "REGENERATE_VIDEO"
)

// Valid reports whether t is a known job type.
func (t JobType) Valid() bool {
	switch t {
	case JobCreateVideo, JobUpdateScene, JobRegenerateVideo:
		return true
	}
	return false
}

// JobStatus is the coarse lifecycle of a job.
type JobStatus string

const (
	JobQueued     JobStatus = "QUEUED"
	JobProcessing JobStatus = "PROCESSING"
	JobCompleted  JobStatus = "COMPLETED"
	JobFailed     JobStatus = "FAILED"
)

// Terminal reports whether no further transitions are allowed.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// Active reports whether the job occupies its video's active slot.
func (s JobStatus) Active() bool {
	return s == JobQueued || s == JobProcessing
}

func statusRank(s JobStatus) int {
	switch s {
	case JobQueued:
		return 0
	case JobProcessing:
		return 1
	case JobCompleted, JobFailed:
		return 2
	default:
		return -1
	}
}

// CanTransition reports whether from -> to respects the monotonic order
// QUEUED -> PROCESSING -> {COMPLETED, FAILED}. Rewriting the same status is
// allowed for non-terminal states so progress updates can be persisted.
func CanTransition(from, to JobStatus) bool {
	if from == to {
		return !from.Terminal()
	}
	if from.Terminal() {
		return false
	}
	rf, rt := statusRank(from), statusRank(to)
	return rf >= 0 && rt > rf
}

// Stage is the pipeline state machine position of a job.
type Stage string

const (
	StageQueued            Stage = "QUEUED"
	StageRenderingScenes   Stage = "RENDERING_SCENES"
	StageSynthesizingAudio Stage = "SYNTHESIZING_AUDIO"
	StageStitching         Stage = "STITCHING"
	StageUploading         Stage = "UPLOADING"
	StageCompleted         Stage = "COMPLETED"
	StageFailed            Stage = "FAILED"
)

// PipelineStages lists the working stages in execution order.
var PipelineStages = []Stage{StageRenderingScenes, StageSynthesizingAudio, StageStitching, StageUploading}

// VideoStatus is the lifecycle of a video project.
type VideoStatus string

const (
	VideoDraft      VideoStatus = "DRAFT"
	VideoProcessing VideoStatus = "PROCESSING"
	VideoCompleted  VideoStatus = "COMPLETED"
	VideoFailed     VideoStatus = "FAILED"
)

// Visibility controls who can see a finished video.
type Visibility string

const (
	VisibilityPrivate  Visibility = "private"
	VisibilityUnlisted Visibility = "unlisted"
	VisibilityPublic   Visibility = "public"
)

// JobParams carries the inputs captured at submission time.
type JobParams struct {
	ProviderModelID string         `json:"providerModelId"`
	ProviderConfig  map[string]any `json:"providerConfig,omitempty"`
	AspectRatio     string         `json:"aspectRatio,omitempty"`
	DurationSeconds int            `json:"durationSeconds,omitempty"`
	VoiceID         string         `json:"voiceId,omitempty"`
	MaxScenes       int            `json:"maxScenes,omitempty"`
	StoryIdea       string         `json:"storyIdea,omitempty"`
	SceneNumber     int            `json:"sceneNumber,omitempty"`
	MusicKey        string         `json:"musicKey,omitempty"`
}

// Progress tracks completed pipeline steps.
type Progress struct {
	CurrentStep    Stage   `json:"currentStep"`
	CompletedSteps int     `json:"completedSteps"`
	TotalSteps     int     `json:"totalSteps"`
	Percent        float64 `json:"percent"`
}

// NewProgress returns progress for a pipeline of total steps.
func NewProgress(total int) Progress {
	return Progress{CurrentStep: StageQueued, TotalSteps: total}
}

// Complete marks one more step done and recomputes the percentage.
func (p *Progress) Complete(stage Stage) {
	p.CurrentStep = stage
	if p.CompletedSteps < p.TotalSteps {
		p.CompletedSteps++
	}
	p.recompute()
}

func (p *Progress) recompute() {
	if p.TotalSteps <= 0 {
		p.Percent = 0
		return
	}
	p.Percent = float64(p.CompletedSteps) / float64(p.TotalSteps) * 100
}

// SceneResult describes one delivered scene.
type SceneResult struct {
	SceneNumber     int     `json:"sceneNumber"`
	VideoKey        string  `json:"videoKey"`
	VideoURL        string  `json:"videoUrl"`
	AudioKey        string  `json:"audioKey,omitempty"`
	AudioURL        string  `json:"audioUrl,omitempty"`
	DurationSeconds float64 `json:"durationSeconds"`
}

// Result is written only when a job completes every stage.
type Result struct {
	VideoKey        string        `json:"videoKey"`
	VideoURL        string        `json:"videoUrl"`
	ThumbnailKey    string        `json:"thumbnailKey,omitempty"`
	ThumbnailURL    string        `json:"thumbnailUrl,omitempty"`
	DurationSeconds float64       `json:"durationSeconds"`
	Version         int64         `json:"version"`
	Scenes          []SceneResult `json:"scenes"`
}

// Job is one unit of queued pipeline work.
type Job struct {
	ID          string
	VideoID     string
	UserID      string
	Type        JobType
	Status      JobStatus
	Stage       Stage
	FailedStage Stage
	Error       string
	Params      JobParams
	Progress    Progress
	Attempts    int
	Result      *Result
	CreatedAt   time.Time
	UpdatedAt   time.Time
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Scene is one storyboard entry.
type Scene struct {
	SceneNumber      int     `json:"sceneNumber"`
	Description      string  `json:"description"`
	Voiceover        string  `json:"voiceover"`
	DurationSeconds  float64 `json:"durationSeconds,omitempty"`
	NarrationSeconds float64 `json:"narrationSeconds,omitempty"`
	VideoKey         string  `json:"videoKey,omitempty"`
	AudioKey         string  `json:"audioKey,omitempty"`
	Version          int64   `json:"version"`
}

// Storyboard is the ordered plan a video is rendered from.
type Storyboard struct {
	Title            string   `json:"title"`
	Tags             []string `json:"tags,omitempty"`
	MusicDescription string   `json:"musicDescription,omitempty"`
	Scenes           []Scene  `json:"scenes"`
}

// Scene returns the scene with the given number.
func (s *Storyboard) Scene(number int) (*Scene, bool) {
	for i := range s.Scenes {
		if s.Scenes[i].SceneNumber == number {
			return &s.Scenes[i], true
		}
	}
	return nil, false
}

// Video is a user's video project.
type Video struct {
	ID           string
	UserID       string
	Visibility   Visibility
	Version      int64
	Status       VideoStatus
	Storyboard   *Storyboard
	CurrentJobID string
	Result       *Result
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HistoryEntry is one append-only processing history record.
type HistoryEntry struct {
	ID      string
	VideoID string
	JobID   string
	From    string
	To      string
	Stage   Stage
	Message string
	At      time.Time
}

// ValidateScenes checks scene numbers are unique and contiguous from 1, in order.
func ValidateScenes(scenes []Scene) error {
	if len(scenes) == 0 {
		return fmt.Errorf("storyboard has no scenes")
	}
	for i, scene := range scenes {
		if scene.SceneNumber != i+1 {
			return fmt.Errorf("scene %d has number %d; scene numbers must be contiguous from 1", i+1, scene.SceneNumber)
		}
	}
	return nil
}

// Renumber orders scenes by their current number and reassigns 1..n.
func Renumber(scenes []Scene) []Scene {
	out := append([]Scene(nil), scenes...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].SceneNumber < out[j].SceneNumber })
	for i := range out {
		out[i].SceneNumber = i + 1
	}
	return out
}
