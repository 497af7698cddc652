package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"vidforge/internal/api"
	"vidforge/internal/config"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show a running worker's queue, job and dependency status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			status, err := fetchDaemonStatus(cmd.Context(), cfg, http.DefaultClient)
			if err != nil {
				return err
			}
			if ctx.JSONMode() {
				return writeJSON(cmd, status)
			}
			out := cmd.OutOrStdout()
			for _, line := range daemonStatusLines(status, shouldColorize(out)) {
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
}

// fetchDaemonStatus queries the admin API configured in cfg.
func fetchDaemonStatus(ctx context.Context, cfg *config.Config, client *http.Client) (*api.DaemonStatus, error) {
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" || strings.EqualFold(bind, "off") {
		return nil, errors.New("admin API is disabled (paths.api_bind)")
	}
	reqCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, "http://"+bind+"/api/status", nil)
	if err != nil {
		return nil, err
	}
	if token := cfg.Paths.APIToken; token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, syscall.ECONNREFUSED) {
			return nil, fmt.Errorf("no worker listening on %s; start one with `vidforge worker`", bind)
		}
		return nil, fmt.Errorf("query worker status: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("query worker status: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	var status api.DaemonStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode worker status: %w", err)
	}
	return &status, nil
}

func daemonStatusLines(status *api.DaemonStatus, colorize bool) []string {
	var lines []string
	section := func(title string) {
		if len(lines) > 0 {
			lines = append(lines, "")
		}
		lines = append(lines, renderSectionHeader(title, colorize)...)
	}

	section("Worker")
	if status.Running {
		lines = append(lines, renderStatusLine("Worker", statusOK, "Running (pid "+strconv.Itoa(status.PID)+")", colorize))
	} else {
		lines = append(lines, renderStatusLine("Worker", statusError, "Not running", colorize))
	}
	wf := status.Workflow
	lines = append(lines,
		renderStatusLine("Workers", statusInfo, fmt.Sprintf("%d busy of %d", wf.Busy, wf.Workers), colorize),
		renderStatusLine("Queue backend", statusInfo, status.QueueBackend, colorize),
	)
	if wf.LastError != "" {
		lines = append(lines, renderStatusLine("Last error", statusWarn, wf.LastError, colorize))
	}

	section("Queue")
	for _, key := range sortedKeys(wf.Queue) {
		kind := statusInfo
		if key == "dead" && wf.Queue[key] > 0 {
			kind = statusWarn
		}
		lines = append(lines, renderStatusLine(key, kind, strconv.Itoa(wf.Queue[key]), colorize))
	}

	if len(wf.Jobs) > 0 {
		section("Jobs")
		for _, key := range sortedKeys(wf.Jobs) {
			lines = append(lines, renderStatusLine(key, jobStatusKind(key), strconv.Itoa(wf.Jobs[key]), colorize))
		}
	}

	if len(wf.StageHealth) > 0 {
		section("Stages")
		for _, h := range wf.StageHealth {
			kind, detail := statusOK, "Ready"
			if !h.Ready {
				kind, detail = statusError, h.Detail
			}
			lines = append(lines, renderStatusLine(h.Name, kind, detail, colorize))
		}
	}

	section("Dependencies")
	lines = append(lines, dependencyLines(status.Dependencies, colorize)...)
	return lines
}
