package netsup

import (
	"context"
	"fmt"
	"time"
)

// DefaultPollInterval is the default poll cadence.
const DefaultPollInterval = 100 * time.Millisecond

// Poller is the state machine driven by Runner.
type Poller interface {
	Begin()
	Poll()
}

// Runner drives a Poller at a fixed cadence on one goroutine and runs
// commands from other goroutines between polls.
type Runner struct {
	poller   Poller
	interval time.Duration
	logger   Logger
	cmds     chan func()
}

// NewRunner creates a runner. A zero interval uses DefaultPollInterval.
func NewRunner(poller Poller, interval time.Duration, logger Logger) *Runner {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Runner{
		poller:   poller,
		interval: interval,
		logger:   logger,
		cmds:     make(chan func()),
	}
}

// Run calls Begin, then polls until ctx is cancelled.
// It returns ctx.Err().
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info("poll loop started", "interval", r.interval)
	r.poller.Begin()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("poll loop stopped")
			return ctx.Err()
		case <-ticker.C:
			r.poller.Poll()
		case fn := <-r.cmds:
			fn()
		}
	}
}

// Do runs fn on the poll goroutine and waits for it to finish.
// It fails if ctx ends before fn is scheduled or completes.
func (r *Runner) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	cmd := func() {
		defer close(done)
		fn()
	}

	select {
	case r.cmds <- cmd:
	case <-ctx.Done():
		return fmt.Errorf("scheduling command: %w", ctx.Err())
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for command: %w", ctx.Err())
	}
}
