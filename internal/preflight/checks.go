package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"vidforge/internal/config"
	"vidforge/internal/deps"
)

// pingTimeout bounds each reachability check.
const pingTimeout = 10 * time.Second

// PingFunc probes one backend.
type PingFunc func(context.Context) error

// CheckPing runs ping with a timeout and reports the result under name.
func CheckPing(ctx context.Context, name, target string, ping PingFunc) Result {
	if ping == nil {
		return Result{Name: name, Detail: "not configured"}
	}
	checkCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := ping(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeError(target, err)}
	}
	detail := "reachable"
	if target != "" {
		detail = fmt.Sprintf("%s (reachable)", target)
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSystemDeps evaluates the media binaries for cfg. Both the daemon
// and the CLI check command use it.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	return deps.CheckBinaries(deps.MediaRequirements(cfg.Media))
}

// CheckBinaries converts CheckSystemDeps into preflight results.
func CheckBinaries(cfg *config.Config) []Result {
	statuses := CheckSystemDeps(cfg)
	results := make([]Result, 0, len(statuses))
	for _, status := range statuses {
		r := Result{Name: status.Name, Passed: status.Available || status.Optional}
		switch {
		case status.Available:
			r.Detail = status.Command
		case status.Detail != "":
			r.Detail = status.Detail
		}
		results = append(results, r)
	}
	return results
}

func summarizeError(target string, err error) string {
	prefix := ""
	if target != "" {
		prefix = target + ": "
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return prefix + "timed out"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return prefix + "timed out (unreachable)"
	}
	return prefix + strings.TrimSpace(err.Error())
}
