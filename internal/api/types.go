package api

import "vidforge/internal/project"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Job describes a job in a transport-friendly format.
type Job struct {
	ID          string            `json:"id"`
	VideoID     string            `json:"videoId"`
	UserID      string            `json:"userId"`
	Type        string            `json:"type"`
	Status      string            `json:"status"`
	Stage       string            `json:"stage"`
	FailedStage string            `json:"failedStage,omitempty"`
	Error       string            `json:"error,omitempty"`
	Progress    Progress          `json:"progress"`
	Attempts    int               `json:"attempts"`
	Params      project.JobParams `json:"params"`
	Result      *project.Result   `json:"result,omitempty"`
	CreatedAt   string            `json:"createdAt,omitempty"`
	UpdatedAt   string            `json:"updatedAt,omitempty"`
	StartedAt   string            `json:"startedAt,omitempty"`
	FinishedAt  string            `json:"finishedAt,omitempty"`
}

// Progress captures pipeline progress for a job.
type Progress struct {
	CurrentStep    string  `json:"currentStep"`
	CompletedSteps int     `json:"completedSteps"`
	TotalSteps     int     `json:"totalSteps"`
	Percent        float64 `json:"percent"`
}

// JobStatus is the status polling payload.
type JobStatus struct {
	Status   string          `json:"status"`
	Stage    string          `json:"stage"`
	Progress Progress        `json:"progress"`
	Error    string          `json:"error,omitempty"`
	Result   *project.Result `json:"result,omitempty"`
}

// SubmitRequest asks for a new job. StoryIdea and Concept are aliases.
type SubmitRequest struct {
	VideoID         string         `json:"videoId"`
	UserID          string         `json:"userId"`
	Type            string         `json:"type"`
	ProviderModelID string         `json:"providerModelId,omitempty"`
	ProviderConfig  map[string]any `json:"providerConfig,omitempty"`
	AspectRatio     string         `json:"aspectRatio,omitempty"`
	DurationSeconds int            `json:"durationSeconds,omitempty"`
	VoiceID         string         `json:"voiceId,omitempty"`
	MaxScenes       int            `json:"maxScenes,omitempty"`
	StoryIdea       string         `json:"storyIdea,omitempty"`
	Concept         string         `json:"concept,omitempty"`
	SceneNumber     int            `json:"sceneNumber,omitempty"`
	MusicKey        string         `json:"musicKey,omitempty"`
}

// Video describes a video project.
type Video struct {
	ID           string              `json:"id"`
	UserID       string              `json:"userId"`
	Visibility   string              `json:"visibility"`
	Version      int64               `json:"version"`
	Status       string              `json:"status"`
	CurrentJobID string              `json:"currentJobId,omitempty"`
	Storyboard   *project.Storyboard `json:"storyboard,omitempty"`
	Result       *project.Result     `json:"result,omitempty"`
	CreatedAt    string              `json:"createdAt,omitempty"`
	UpdatedAt    string              `json:"updatedAt,omitempty"`
}

// CreateVideoRequest creates a draft video, optionally with a storyboard.
type CreateVideoRequest struct {
	UserID     string              `json:"userId"`
	Visibility string              `json:"visibility,omitempty"`
	Storyboard *project.Storyboard `json:"storyboard,omitempty"`
}

// Model describes a registered provider model.
type Model struct {
	ID            string         `json:"id"`
	Provider      string         `json:"provider"`
	Configured    bool           `json:"configured"`
	AspectRatios  []string       `json:"aspectRatios"`
	Resolutions   []string       `json:"resolutions"`
	Durations     string         `json:"durations"`
	Features      []string       `json:"features,omitempty"`
	CostPerSecond float64        `json:"costPerSecond"`
	Defaults      map[string]any `json:"defaults,omitempty"`
}

// WorkflowStatus summarizes consumer execution state.
type WorkflowStatus struct {
	Running     bool           `json:"running"`
	Workers     int            `json:"workers"`
	Busy        int            `json:"busy"`
	LastError   string         `json:"lastError,omitempty"`
	LastJobID   string         `json:"lastJobId,omitempty"`
	Queue       map[string]int `json:"queue"`
	Jobs        map[string]int `json:"jobs"`
	StageHealth []StageHealth  `json:"stageHealth"`
}

// StageHealth mirrors readiness reporting for pipeline stages.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	LockFilePath string             `json:"lockFilePath"`
	QueueBackend string             `json:"queueBackend"`
	Workflow     WorkflowStatus     `json:"workflow"`
	Dependencies []DependencyStatus `json:"dependencies"`
}

// JobListResponse wraps a collection of jobs.
type JobListResponse struct {
	Jobs []Job `json:"jobs"`
}
