// Package shell runs model-issued command strings on the host with a
// timeout, capturing output and folding the three external failure
// modes (timeout, nonzero exit, host fault) into one uniform result.
package shell

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultTimeout bounds a single command when the caller passes
	// no explicit timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxOutputBytes caps each captured stream.
	DefaultMaxOutputBytes = 1 << 20 // 1 MiB
)

// Result is the uniform outcome of one execution. Exactly one of the
// three shapes applies: normal completion (ExitCode set), timeout
// (TimedOut true, ExitCode nil), or host fault (Err non-empty).
// Nonzero exit is reported, never treated as failure.
type Result struct {
	ExitCode  *int
	Stdout    string
	Stderr    string
	TimedOut  bool
	Err       string
	Duration  time.Duration
	Truncated bool
}

// Config holds runner settings.
type Config struct {
	// Shell is the interpreter invocation the command string is handed
	// to; defaults to {"/bin/sh", "-c"}.
	Shell []string

	// MaxOutputBytes caps each of stdout and stderr. Zero means
	// DefaultMaxOutputBytes.
	MaxOutputBytes int64

	// WorkDir is the working directory for commands; empty means the
	// process's own.
	WorkDir string
}

// Runner executes command strings through a shell. No retries are
// performed here; recovery policy belongs to the caller.
type Runner struct {
	cfg    Config
	logger *zap.Logger
}

// NewRunner creates a runner. A nil logger is replaced with a no-op
// logger.
func NewRunner(cfg Config, logger *zap.Logger) *Runner {
	if len(cfg.Shell) == 0 {
		cfg.Shell = []string{"/bin/sh", "-c"}
	}
	if cfg.MaxOutputBytes <= 0 {
		cfg.MaxOutputBytes = DefaultMaxOutputBytes
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{cfg: cfg, logger: logger}
}

// Run executes command with the given timeout. A timeout <= 0 falls
// back to DefaultTimeout. The result is always usable; errors never
// escape as Go errors.
func (r *Runner) Run(ctx context.Context, command string, timeout time.Duration) Result {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := append(append([]string(nil), r.cfg.Shell[1:]...), command)
	cmd := exec.CommandContext(execCtx, r.cfg.Shell[0], args...)
	cmd.Dir = r.cfg.WorkDir

	var stdoutBuf, stderrBuf bytes.Buffer
	stdout := &limitedWriter{w: &stdoutBuf, max: r.cfg.MaxOutputBytes}
	stderr := &limitedWriter{w: &stderrBuf, max: r.cfg.MaxOutputBytes}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	r.logger.Debug("executing command",
		zap.String("command", command),
		zap.Duration("timeout", timeout))

	started := time.Now()
	err := cmd.Run()

	result := Result{
		Stdout:    stdoutBuf.String(),
		Stderr:    stderrBuf.String(),
		Duration:  time.Since(started),
		Truncated: stdout.truncated || stderr.truncated,
	}

	switch {
	case err == nil:
		code := 0
		result.ExitCode = &code

	case errors.Is(execCtx.Err(), context.DeadlineExceeded):
		result.TimedOut = true
		r.logger.Warn("command timed out",
			zap.String("command", command),
			zap.Duration("timeout", timeout))

	default:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code := exitErr.ExitCode()
			result.ExitCode = &code
		} else {
			// Spawn failure or another host-level fault.
			result.Err = err.Error()
			r.logger.Warn("command could not run",
				zap.String("command", command),
				zap.Error(err))
		}
	}

	r.logger.Debug("command finished",
		zap.String("command", command),
		zap.Bool("timed_out", result.TimedOut),
		zap.Duration("duration", result.Duration))
	return result
}

// limitedWriter caps total bytes written, discarding the overflow while
// reporting success to keep the pipe draining.
type limitedWriter struct {
	w         io.Writer
	max       int64
	written   int64
	truncated bool
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	if lw.written >= lw.max {
		lw.truncated = true
		return n, nil
	}
	if remaining := lw.max - lw.written; int64(n) > remaining {
		lw.truncated = true
		written, err := lw.w.Write(p[:remaining])
		lw.written += int64(written)
		return n, err
	}
	written, err := lw.w.Write(p)
	lw.written += int64(written)
	return written, err
}
