package api

import (
	"maps"
	"sort"
	"time"

	"vidforge/internal/deps"
	"vidforge/internal/project"
	"vidforge/internal/providers"
	"vidforge/internal/stage"
	"vidforge/internal/workflow"
)

// FromJob converts a stored job to its API representation.
func FromJob(job *project.Job) Job {
	if job == nil {
		return Job{}
	}
	return Job{
		ID:          job.ID,
		VideoID:     job.VideoID,
		UserID:      job.UserID,
		Type:        string(job.Type),
		Status:      string(job.Status),
		Stage:       string(job.Stage),
		FailedStage: string(job.FailedStage),
		Error:       job.Error,
		Progress:    fromProgress(job.Progress),
		Attempts:    job.Attempts,
		Params:      job.Params,
		Result:      job.Result,
		CreatedAt:   formatTime(job.CreatedAt),
		UpdatedAt:   formatTime(job.UpdatedAt),
		StartedAt:   formatTime(job.StartedAt),
		FinishedAt:  formatTime(job.FinishedAt),
	}
}

// FromJobs converts a slice of jobs.
func FromJobs(jobs []*project.Job) []Job {
	out := make([]Job, 0, len(jobs))
	for _, job := range jobs {
		if job == nil {
			continue
		}
		out = append(out, FromJob(job))
	}
	return out
}

// StatusOf reduces a job to the polling payload. A job that failed shows
// FAILED with its message; the result appears only once it completed.
func StatusOf(job *project.Job) JobStatus {
	if job == nil {
		return JobStatus{}
	}
	status := JobStatus{
		Status:   string(job.Status),
		Stage:    string(job.Stage),
		Progress: fromProgress(job.Progress),
		Error:    job.Error,
	}
	if job.Status == project.JobCompleted {
		status.Result = job.Result
	}
	return status
}

func fromProgress(p project.Progress) Progress {
	return Progress{
		CurrentStep:    string(p.CurrentStep),
		CompletedSteps: p.CompletedSteps,
		TotalSteps:     p.TotalSteps,
		Percent:        p.Percent,
	}
}

// FromVideo converts a stored video.
func FromVideo(video *project.Video) Video {
	if video == nil {
		return Video{}
	}
	return Video{
		ID:           video.ID,
		UserID:       video.UserID,
		Visibility:   string(video.Visibility),
		Version:      video.Version,
		Status:       string(video.Status),
		CurrentJobID: video.CurrentJobID,
		Storyboard:   video.Storyboard,
		Result:       video.Result,
		CreatedAt:    formatTime(video.CreatedAt),
		UpdatedAt:    formatTime(video.UpdatedAt),
	}
}

// FromModel describes a registered model. configured reports whether its
// provider has credentials.
func FromModel(spec providers.ModelSpec, configured bool) Model {
	caps := spec.Capabilities()
	return Model{
		ID:            spec.ID(),
		Provider:      string(spec.Provider()),
		Configured:    configured,
		AspectRatios:  caps.AspectRatios,
		Resolutions:   caps.Resolutions,
		Durations:     caps.Durations.String(),
		Features:      caps.Features,
		CostPerSecond: caps.CostPerSecond,
		Defaults:      maps.Clone(spec.Defaults()),
	}
}

// FromStatusSummary converts a consumer status summary.
func FromStatusSummary(summary workflow.StatusSummary) WorkflowStatus {
	jobs := make(map[string]int, len(summary.Jobs))
	for status, count := range summary.Jobs {
		jobs[string(status)] = count
	}
	return WorkflowStatus{
		Running:   summary.Running,
		Workers:   summary.Workers,
		Busy:      summary.Busy,
		LastError: summary.LastError,
		LastJobID: summary.LastJobID,
		Queue: map[string]int{
			"ready":   summary.Queue.Ready,
			"delayed": summary.Queue.Delayed,
			"leased":  summary.Queue.Leased,
			"done":    summary.Queue.Done,
			"dead":    summary.Queue.Dead,
		},
		Jobs:        jobs,
		StageHealth: StageHealthSlice(summary.StageHealth),
	}
}

// StageHealthSlice converts stage health records, ordered by name.
func StageHealthSlice(health []stage.Health) []StageHealth {
	out := make([]StageHealth, 0, len(health))
	for _, h := range health {
		out = append(out, StageHealth{Name: h.Name, Ready: h.Ready, Detail: h.Detail})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// FromDependencies converts dependency checks.
func FromDependencies(statuses []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, DependencyStatus{
			Name:        s.Name,
			Command:     s.Command,
			Description: s.Description,
			Optional:    s.Optional,
			Available:   s.Available,
			Detail:      s.Detail,
		})
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
