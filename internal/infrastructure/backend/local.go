// Package backend runs plans as local subprocesses.
package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/doeshing/orca-go/internal/domain"
	"github.com/doeshing/orca-go/internal/ports"
)

const (
	stderrExcerptLimit = 512
	// waitDelay bounds how long Run waits for orphaned children holding the pipes.
	waitDelay = 2 * time.Second
)

// LocalBackend runs programs on the host.
type LocalBackend struct {
	dir string
	env []string
}

// NewLocalBackend builds a backend. dir and env default to the current process.
func NewLocalBackend(dir string, env []string) *LocalBackend {
	return &LocalBackend{dir: dir, env: env}
}

// Run implements ports.CommandBackend. Failures carry the exit code, signal or a
// stderr excerpt in their message.
func (b *LocalBackend) Run(ctx context.Context, command string, args []string) (domain.CommandOutput, error) {
	c := exec.CommandContext(ctx, command, args...)
	c.Dir = b.dir
	c.WaitDelay = waitDelay
	if len(b.env) > 0 {
		c.Env = b.env
	}
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	err := c.Run()
	out := domain.CommandOutput{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err == nil {
		return out, nil
	}

	if ctxErr := ctx.Err(); errors.Is(ctxErr, context.DeadlineExceeded) {
		out.ExitCode = -1
		return out, fmt.Errorf("%s: timeout: %w", command, ctxErr)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		out.ExitCode = exitErr.ExitCode()
		if out.ExitCode < 0 {
			return out, fmt.Errorf("%s: %s: %s", command, exitErr.String(), excerpt(out))
		}
		return out, fmt.Errorf("%s: exit %d: %s", command, out.ExitCode, excerpt(out))
	}

	out.ExitCode = -1
	return out, fmt.Errorf("%s: %w", command, err)
}

func excerpt(out domain.CommandOutput) string {
	text := strings.TrimSpace(out.Stderr)
	if text == "" {
		text = strings.TrimSpace(out.Stdout)
	}
	if len(text) > stderrExcerptLimit {
		text = "..." + text[len(text)-stderrExcerptLimit:]
	}
	return text
}

var _ ports.CommandBackend = (*LocalBackend)(nil)
