// Package deps checks that the external binaries the pipeline shells out
// to are installed.
package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"vidforge/internal/config"
)

// Requirement defines an external dependency vidforge relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// MediaRequirements lists the binaries configured in cfg.
func MediaRequirements(cfg config.Media) []Requirement {
	return []Requirement{
		{Name: "FFmpeg", Command: orDefault(cfg.FFmpegBinary, "ffmpeg"), Description: "Scene sync, transitions, music and captions"},
		{Name: "FFprobe", Command: orDefault(cfg.FFprobeBinary, "ffprobe"), Description: "Clip and narration duration probing"},
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		switch {
		case cmd == "":
			status.Detail = "command not configured"
		default:
			if resolved, err := exec.LookPath(cmd); err != nil {
				status.Detail = fmt.Sprintf("binary %q not found", cmd)
			} else {
				status.Available = true
				status.Command = resolved
			}
		}
		results = append(results, status)
	}
	return results
}

// Missing returns the required dependencies that are unavailable.
func Missing(statuses []Status) []Status {
	var out []Status
	for _, s := range statuses {
		if !s.Available && !s.Optional {
			out = append(out, s)
		}
	}
	return out
}

func orDefault(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}
