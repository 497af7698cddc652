package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"vidforge/internal/api"
	"vidforge/internal/config"
	"vidforge/internal/project"
)

func newVideoCommand(ctx *commandContext) *cobra.Command {
	videoCmd := &cobra.Command{
		Use:   "video",
		Short: "Create and inspect video projects",
	}
	videoCmd.AddCommand(newVideoCreateCommand(ctx))
	videoCmd.AddCommand(newVideoShowCommand(ctx))
	return videoCmd
}

func newVideoCreateCommand(ctx *commandContext) *cobra.Command {
	var req api.CreateVideoRequest
	var storyboardPath string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a draft video, optionally from a storyboard JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(storyboardPath) != "" {
				board, err := loadStoryboard(storyboardPath)
				if err != nil {
					return err
				}
				req.Storyboard = board
			}
			return ctx.withBackend(cmd, func(b *backend) error {
				video, err := b.jobs.CreateVideo(cmd.Context(), req)
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, video)
				}
				scenes := 0
				if video.Storyboard != nil {
					scenes = len(video.Storyboard.Scenes)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created video %s (%d scenes)\n", video.ID, scenes)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&req.UserID, "user", "", "Owning user ID")
	cmd.Flags().StringVar(&req.Visibility, "visibility", "", "private, unlisted or public")
	cmd.Flags().StringVar(&storyboardPath, "storyboard", "", "Path to a storyboard JSON file")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func loadStoryboard(path string) (*project.Storyboard, error) {
	expanded, err := config.ExpandPath(strings.TrimSpace(path))
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		return nil, fmt.Errorf("read storyboard: %w", err)
	}
	var board project.Storyboard
	if err := json.Unmarshal(data, &board); err != nil {
		return nil, fmt.Errorf("parse storyboard %s: %w", expanded, err)
	}
	return &board, nil
}

func newVideoShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <video-id>",
		Short: "Show a video with its storyboard",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withBackend(cmd, func(b *backend) error {
				video, err := b.jobs.GetVideo(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, video)
				}
				printVideo(cmd, video)
				return nil
			})
		},
	}
}

func printVideo(cmd *cobra.Command, video *api.Video) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	title := video.ID
	if video.Storyboard != nil && video.Storyboard.Title != "" {
		title = video.Storyboard.Title
	}
	for _, line := range renderSectionHeader(title, colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, renderStatusLine("Status", videoStatusKind(video.Status), video.Status, colorize))
	fmt.Fprintln(out, renderStatusLine("Version", statusInfo, strconv.FormatInt(video.Version, 10), colorize))
	fmt.Fprintln(out, renderStatusLine("Visibility", statusInfo, video.Visibility, colorize))
	if video.CurrentJobID != "" {
		fmt.Fprintln(out, renderStatusLine("Current job", statusInfo, video.CurrentJobID, colorize))
	}
	if video.Result != nil {
		fmt.Fprintln(out, renderStatusLine("Video URL", statusOK, video.Result.VideoURL, colorize))
	}
	if video.Storyboard == nil || len(video.Storyboard.Scenes) == 0 {
		return
	}
	fmt.Fprintln(out)
	rows := make([][]string, 0, len(video.Storyboard.Scenes))
	for _, scene := range video.Storyboard.Scenes {
		rows = append(rows, []string{
			strconv.Itoa(scene.SceneNumber),
			truncate(scene.Description, 48),
			strconv.FormatInt(scene.Version, 10),
			yesNo(scene.VideoKey != ""),
		})
	}
	fmt.Fprint(out, renderTable(
		[]string{"#", "Description", "Version", "Rendered"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft},
	))
	fmt.Fprintln(out)
}

func videoStatusKind(status string) statusKind {
	switch project.VideoStatus(status) {
	case project.VideoCompleted:
		return statusOK
	case project.VideoFailed:
		return statusError
	default:
		return statusInfo
	}
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
