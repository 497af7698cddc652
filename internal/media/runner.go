package media

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// Runner executes a binary and returns its combined output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// outputTail bounds how much subprocess output is folded into errors.
const outputTail = 2048

// ExecRunner runs commands in their own process group.
type ExecRunner struct {
	// WaitDelay bounds how long Run waits for output pipes after the
	// group is killed.
	WaitDelay time.Duration
}

// Run executes name with args and returns stdout and stderr combined.
func (r ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		err := unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
		if errors.Is(err, unix.ESRCH) {
			return nil
		}
		return err
	}
	cmd.WaitDelay = r.WaitDelay
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = 5 * time.Second
	}

	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return output, fmt.Errorf("%s: %w", name, ctxErr)
		}
		return output, fmt.Errorf("%s: %w: %s", name, err, tail(output))
	}
	return output, nil
}

func tail(output []byte) string {
	text := strings.TrimSpace(string(output))
	if len(text) > outputTail {
		text = "..." + text[len(text)-outputTail:]
	}
	return text
}
