package main

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"vidforge/internal/api"
	"vidforge/internal/project"
)

func newJobCommand(ctx *commandContext) *cobra.Command {
	jobCmd := &cobra.Command{
		Use:   "job",
		Short: "Submit and inspect video jobs",
	}
	jobCmd.AddCommand(newJobSubmitCommand(ctx))
	jobCmd.AddCommand(newJobStatusCommand(ctx))
	jobCmd.AddCommand(newJobShowCommand(ctx))
	jobCmd.AddCommand(newJobListCommand(ctx))
	return jobCmd
}

func newJobSubmitCommand(ctx *commandContext) *cobra.Command {
	var req api.SubmitRequest
	var settings map[string]string

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Queue a CREATE_VIDEO, REGENERATE_VIDEO or UPDATE_SCENE job",
		RunE: func(cmd *cobra.Command, args []string) error {
			providerConfig, err := parseProviderSettings(settings)
			if err != nil {
				return err
			}
			req.ProviderConfig = providerConfig
			return ctx.withBackend(cmd, func(b *backend) error {
				job, err := b.jobs.Submit(cmd.Context(), req)
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, job)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Queued %s job %s for video %s (model %s)\n",
					job.Type, job.ID, job.VideoID, job.Params.ProviderModelID)
				return nil
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&req.VideoID, "video", "", "Video ID")
	flags.StringVar(&req.UserID, "user", "", "Owning user ID (defaults to the video's owner)")
	flags.StringVar(&req.Type, "type", string(project.JobCreateVideo), "Job type")
	flags.StringVar(&req.ProviderModelID, "model", "", "Provider model ID")
	flags.StringVar(&req.AspectRatio, "aspect", "", "Aspect ratio, e.g. 16:9")
	flags.IntVar(&req.DurationSeconds, "duration", 0, "Seconds per generated clip")
	flags.StringVar(&req.VoiceID, "voice", "", "Narration voice")
	flags.IntVar(&req.MaxScenes, "max-scenes", 0, "Scene cap when planning from an idea")
	flags.StringVar(&req.StoryIdea, "idea", "", "Story idea used when the video has no storyboard")
	flags.IntVar(&req.SceneNumber, "scene", 0, "Scene number for UPDATE_SCENE")
	flags.StringVar(&req.MusicKey, "music", "", "Background music object key")
	flags.StringToStringVar(&settings, "set", nil, "Provider config entries as key=value")
	_ = cmd.MarkFlagRequired("video")
	return cmd
}

// parseProviderSettings converts key=value flags into typed config values.
func parseProviderSettings(settings map[string]string) (map[string]any, error) {
	if len(settings) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(settings))
	for key, raw := range settings {
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, errors.New("provider setting with empty key")
		}
		raw = strings.TrimSpace(raw)
		if n, err := strconv.Atoi(raw); err == nil {
			out[key] = n
			continue
		}
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			out[key] = f
			continue
		}
		if b, err := strconv.ParseBool(raw); err == nil {
			out[key] = b
			continue
		}
		out[key] = raw
	}
	return out, nil
}

func newJobStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show a job's status, stage and progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withBackend(cmd, func(b *backend) error {
				status, err := b.jobs.Status(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, status)
				}
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				for _, line := range jobStatusLines(status, colorize) {
					fmt.Fprintln(out, line)
				}
				return nil
			})
		},
	}
}

func jobStatusLines(status *api.JobStatus, colorize bool) []string {
	lines := []string{
		renderStatusLine("Status", jobStatusKind(status.Status), status.Status, colorize),
		renderStatusLine("Stage", statusInfo, status.Stage, colorize),
		renderStatusLine("Progress", statusInfo, formatProgress(status.Progress), colorize),
	}
	if status.Error != "" {
		lines = append(lines, renderStatusLine("Error", statusError, status.Error, colorize))
	}
	if status.Result != nil {
		lines = append(lines,
			renderStatusLine("Video", statusOK, status.Result.VideoURL, colorize),
			renderStatusLine("Duration", statusInfo, fmt.Sprintf("%.1fs", status.Result.DurationSeconds), colorize),
		)
		if status.Result.ThumbnailURL != "" {
			lines = append(lines, renderStatusLine("Thumbnail", statusOK, status.Result.ThumbnailURL, colorize))
		}
	}
	return lines
}

func jobStatusKind(status string) statusKind {
	switch project.JobStatus(status) {
	case project.JobCompleted:
		return statusOK
	case project.JobFailed:
		return statusError
	case project.JobQueued:
		return statusWarn
	default:
		return statusInfo
	}
}

func formatProgress(p api.Progress) string {
	return fmt.Sprintf("%d/%d (%.0f%%)", p.CompletedSteps, p.TotalSteps, p.Percent)
}

func newJobShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show the full job record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withBackend(cmd, func(b *backend) error {
				job, err := b.jobs.Describe(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, job)
				}
				fields := [][2]string{
					{"ID", job.ID},
					{"Video", job.VideoID},
					{"User", job.UserID},
					{"Type", job.Type},
					{"Status", job.Status},
					{"Stage", job.Stage},
					{"Failed stage", job.FailedStage},
					{"Error", job.Error},
					{"Progress", formatProgress(job.Progress)},
					{"Attempts", strconv.Itoa(job.Attempts)},
					{"Model", job.Params.ProviderModelID},
					{"Created", relativeTime(job.CreatedAt)},
					{"Updated", relativeTime(job.UpdatedAt)},
				}
				if job.Result != nil {
					fields = append(fields,
						[2]string{"Video URL", job.Result.VideoURL},
						[2]string{"Version", strconv.FormatInt(job.Result.Version, 10)},
					)
				}
				fmt.Fprint(cmd.OutOrStdout(), renderFields(fields))
				fmt.Fprintln(cmd.OutOrStdout())
				return nil
			})
		},
	}
}

func newJobListCommand(ctx *commandContext) *cobra.Command {
	var filter project.JobFilter
	var statuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, s := range statuses {
				filter.Statuses = append(filter.Statuses, project.JobStatus(strings.ToUpper(strings.TrimSpace(s))))
			}
			return ctx.withBackend(cmd, func(b *backend) error {
				jobs, err := b.jobs.List(cmd.Context(), filter)
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, api.JobListResponse{Jobs: jobs})
				}
				out := cmd.OutOrStdout()
				if len(jobs) == 0 {
					fmt.Fprintln(out, "No jobs found")
					return nil
				}
				fmt.Fprint(out, renderJobTable(jobs))
				fmt.Fprintln(out)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&filter.VideoID, "video", "", "Only jobs for this video")
	cmd.Flags().StringVar(&filter.UserID, "user", "", "Only jobs for this user")
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Only jobs in these statuses")
	cmd.Flags().IntVar(&filter.Limit, "limit", 50, "Maximum jobs to show")
	return cmd
}

func renderJobTable(jobs []api.Job) string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		rows = append(rows, []string{
			job.ID,
			job.VideoID,
			job.Type,
			job.Status,
			job.Stage,
			fmt.Sprintf("%.0f%%", job.Progress.Percent),
			relativeTime(job.UpdatedAt),
		})
	}
	return renderTable(
		[]string{"ID", "Video", "Type", "Status", "Stage", "Progress", "Updated"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight},
	)
}

// relativeTime renders an API timestamp as "3 minutes ago".
func relativeTime(value string) string {
	if value == "" {
		return ""
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return value
	}
	return humanize.Time(t)
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
