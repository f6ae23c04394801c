// Package agent runs the external reasoning process for delegated sub-queries.
package agent

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/bnema/scout-cli/internal/domain"
	"github.com/bnema/scout-cli/internal/ports"
)

const stderrPreviewLimit = 500

// Runner invokes a claude-compatible CLI with the composed prompt on stdin.
type Runner struct {
	binary string
	logger *slog.Logger
}

var _ ports.AgentRunner = (*Runner)(nil)

func NewRunner(binary string, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Runner{binary: binary, logger: logger}
}

func (r *Runner) Run(ctx context.Context, req ports.AgentRequest) (ports.AgentResult, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.binary, "--print", "--output-format", "text")
	cmd.Stdin = bytes.NewReader([]byte(req.Prompt))
	cmd.Env = append(os.Environ(), req.ExtraEnv...)
	// Descendants of the CLI can keep the stdout/stderr pipes open after the
	// child itself is killed; WaitDelay bounds how long Run waits for them.
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	r.logger.Debug("starting delegate process", "binary", r.binary, "timeout", timeout)

	err := cmd.Run()
	elapsed := time.Since(start)

	if err != nil {
		reason := "exited non-zero"
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			reason = "timed out after " + timeout.String()
		} else {
			var exitErr *exec.ExitError
			if !errors.As(err, &exitErr) {
				reason = "could not start: " + err.Error()
			}
		}
		r.logger.Warn("delegate process failed",
			"binary", r.binary,
			"reason", reason,
			"elapsed", elapsed)
		return ports.AgentResult{}, &domain.DelegateError{
			Reason: reason,
			Stderr: truncate(stderr.String(), stderrPreviewLimit),
		}
	}

	r.logger.Debug("delegate process finished",
		"elapsed", elapsed,
		"stdout_bytes", stdout.Len())
	return ports.AgentResult{Stdout: stdout.String()}, nil
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
