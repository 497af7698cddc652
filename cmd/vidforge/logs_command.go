package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"vidforge/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var follow bool
	var lines int
	var jobID string

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Display worker logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := logs.FilePath(cfg)
			if path == "" {
				return errors.New("file logging is disabled (paths.log_dir is empty)")
			}
			opts := logs.TailOptions{Offset: -1, Limit: lines, Match: jobID}
			if lines <= 0 {
				opts.Offset = 0
			}
			out := cmd.OutOrStdout()

			if follow {
				return logs.Follow(cmd.Context(), path, opts, func(line string) {
					fmt.Fprintln(out, line)
				})
			}
			result, err := logs.Tail(cmd.Context(), path, opts)
			if err != nil {
				return fmt.Errorf("tail logs: %w", err)
			}
			if len(result.Lines) == 0 {
				fmt.Fprintln(out, "No log entries available")
				return nil
			}
			for _, line := range result.Lines {
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow log output")
	cmd.Flags().IntVarP(&lines, "lines", "n", 10, "Number of lines to show (0 for all)")
	cmd.Flags().StringVar(&jobID, "job", "", "Only show lines mentioning this job or video id")
	return cmd
}
