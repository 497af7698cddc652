package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"vidforge/internal/api"
)

func newModelsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List registered video generation models and their capabilities",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withBackend(cmd, func(b *backend) error {
				models := b.jobs.Models()
				if ctx.JSONMode() {
					return writeJSON(cmd, map[string][]api.Model{"models": models})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderModelTable(models))
				fmt.Fprintln(cmd.OutOrStdout())
				return nil
			})
		},
	}
}

func renderModelTable(models []api.Model) string {
	rows := make([][]string, 0, len(models))
	for _, m := range models {
		rows = append(rows, []string{
			m.ID,
			m.Provider,
			strings.Join(m.AspectRatios, " "),
			m.Durations,
			fmt.Sprintf("$%.2f", m.CostPerSecond),
			yesNo(m.Configured),
		})
	}
	return renderTable(
		[]string{"Model", "Provider", "Aspect", "Durations", "Cost/s", "Configured"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	)
}
