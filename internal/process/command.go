package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

// defaultOutputLimit caps the captured stdout and stderr of one command.
const defaultOutputLimit = 64 * 1024

// Config holds configuration for a command runner.
type Config struct {
	// Name is a human-readable identifier for logging.
	Name string

	// Binary is the path to the executable.
	Binary string

	// Env are additional environment variables (key=value format).
	// If nil, inherits from parent process.
	Env []string

	// GracefulTimeout is how long to wait after SIGTERM before SIGKILL
	// when the context is cancelled.
	GracefulTimeout time.Duration

	// OutputLimit caps captured output per stream in bytes.
	OutputLimit int
}

// Logger defines the logging interface for the runner.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Result is the outcome of one command.
type Result struct {
	Stdout   []byte
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Runner executes one-shot invocations of a binary.
//
// Each Run starts the binary in its own process group. If the context ends
// first, the whole group receives SIGTERM and, after GracefulTimeout,
// SIGKILL.
type Runner struct {
	config Config
	logger Logger
}

// NewRunner creates a runner with the given configuration.
func NewRunner(cfg Config) *Runner {
	if cfg.GracefulTimeout == 0 {
		cfg.GracefulTimeout = 2 * time.Second
	}
	if cfg.OutputLimit <= 0 {
		cfg.OutputLimit = defaultOutputLimit
	}
	if cfg.Name == "" {
		cfg.Name = cfg.Binary
	}
	return &Runner{config: cfg, logger: noopLogger{}}
}

// SetLogger sets the logger for the runner.
func (r *Runner) SetLogger(logger Logger) {
	if logger != nil {
		r.logger = logger
	}
}

// Run executes the binary with args and waits for it to exit.
//
// Returns:
//   - Result: captured output and exit code (also on ErrExitStatus)
//   - error: ErrNotFound, ErrExitStatus or ErrCancelled, wrapped
func (r *Runner) Run(ctx context.Context, args ...string) (Result, error) {
	cmd := exec.Command(r.config.Binary, args...) //nolint:gosec // Binary comes from node config, args are built internally

	// Own process group so cancellation reaches any children.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if r.config.Env != nil {
		cmd.Env = append(os.Environ(), r.config.Env...)
	}

	stdout := &limitedBuffer{limit: r.config.OutputLimit}
	stderr := &limitedBuffer{limit: r.config.OutputLimit}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	r.logger.Debug("running command", "name", r.config.Name, "args", args)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			return Result{}, fmt.Errorf("%w: %s: %w", ErrNotFound, r.config.Binary, err)
		}
		return Result{}, fmt.Errorf("starting %s: %w", r.config.Name, err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	var waitErr error
	select {
	case waitErr = <-done:
	case <-ctx.Done():
		r.terminate(cmd.Process.Pid, done)
		return Result{
			Stdout:   stdout.Bytes(),
			Stderr:   stderr.String(),
			ExitCode: -1,
			Duration: time.Since(start),
		}, fmt.Errorf("%w: %s: %w", ErrCancelled, r.config.Name, ctx.Err())
	}

	res := Result{
		Stdout:   stdout.Bytes(),
		Stderr:   strings.TrimSpace(stderr.String()),
		ExitCode: cmd.ProcessState.ExitCode(),
		Duration: time.Since(start),
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			r.logger.Debug("command failed",
				"name", r.config.Name,
				"exit_code", res.ExitCode,
				"stderr", res.Stderr,
			)
			return res, fmt.Errorf("%w: %s exited %d: %s", ErrExitStatus, r.config.Name, res.ExitCode, res.Stderr)
		}
		return res, fmt.Errorf("waiting for %s: %w", r.config.Name, waitErr)
	}

	return res, nil
}

// terminate stops the process group: SIGTERM, then SIGKILL after the
// graceful timeout.
func (r *Runner) terminate(pid int, done <-chan error) {
	r.logger.Debug("cancelling command", "name", r.config.Name, "pid", pid)

	// Negative PID signals the process group created via Setpgid.
	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil {
		if !errors.Is(err, syscall.ESRCH) {
			r.logger.Warn("failed to send SIGTERM to process group", "name", r.config.Name, "error", err)
		}
	}

	select {
	case <-done:
		return
	case <-time.After(r.config.GracefulTimeout):
		r.logger.Warn("graceful stop timeout, sending SIGKILL",
			"name", r.config.Name,
			"timeout", r.config.GracefulTimeout,
		)
	}

	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil {
		if !errors.Is(err, syscall.ESRCH) {
			r.logger.Error("failed to kill process group", "name", r.config.Name, "error", err)
		}
	}
	<-done
}

// limitedBuffer keeps the first limit bytes written and discards the rest.
type limitedBuffer struct {
	buf   bytes.Buffer
	limit int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if room := b.limit - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *limitedBuffer) Bytes() []byte  { return b.buf.Bytes() }
func (b *limitedBuffer) String() string { return b.buf.String() }
