package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"vidforge/internal/logging"
	"vidforge/internal/preflight"
	"vidforge/internal/storage"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Run preflight checks against the configured backends",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			targets := preflight.Targets{}
			b, err := openBackend(cmd.Context(), cfg, logging.NewNop())
			if err == nil {
				defer b.Close()
				targets.Database = b.db.Ping
				targets.Queue = func(ctx context.Context) error {
					_, err := b.queue.Stats(ctx)
					return err
				}
			}
			if gateway, gwErr := storage.New(cfg.Storage, logging.NewNop()); gwErr == nil {
				targets.Storage = func(ctx context.Context) error {
					return gateway.Ping(ctx, cfg.Storage.Bucket)
				}
			}

			results := preflight.RunAll(cmd.Context(), cfg, targets)
			if err != nil {
				results = append([]preflight.Result{{Name: "Backend", Detail: err.Error()}}, results...)
			}
			if ctx.JSONMode() {
				return writeJSON(cmd, results)
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for _, line := range renderSectionHeader("Preflight", colorize) {
				fmt.Fprintln(out, line)
			}
			for _, r := range results {
				kind := statusOK
				if !r.Passed {
					kind = statusError
				}
				fmt.Fprintln(out, renderStatusLine(r.Name, kind, r.Detail, colorize))
			}
			if failed := preflight.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%d preflight checks failed", len(failed))
			}
			return nil
		},
	}
}
