// Package reaper prunes stale case sessions from the session store.
package reaper

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/LeHak0/Neuro-Triage/internal/core"
	"github.com/LeHak0/Neuro-Triage/internal/observability/statsd"
)

// Runner periodically removes case sessions that have not been updated
// within MaxAge. The Redis store expires sessions server-side; the
// in-memory store relies on this loop to bound its growth.
type Runner struct {
	cases    core.CaseRepository
	maxAge   time.Duration
	interval time.Duration
	logger   *slog.Logger
	metrics  statsd.Sink
}

// RunnerOptions holds the dependencies for creating a Runner.
type RunnerOptions struct {
	Cases  core.CaseRepository
	MaxAge time.Duration

	// Interval between prune passes. Defaults to MaxAge/4.
	Interval time.Duration
	Logger   *slog.Logger
	Metrics  statsd.Sink
}

// NewRunner creates a session reaper with the given options.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Cases == nil {
		return nil, errors.New("case repository is required")
	}
	if opts.MaxAge <= 0 {
		return nil, errors.New("max age must be positive")
	}
	if opts.Interval <= 0 {
		opts.Interval = opts.MaxAge / 4
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Runner{
		cases:    opts.Cases,
		maxAge:   opts.MaxAge,
		interval: opts.Interval,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
	}, nil
}

// Run prunes once immediately, then on every tick until the context is
// cancelled. Cancellation is the only way it returns.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting session reaper",
		"max_age", r.maxAge, "interval", r.interval)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.pruneOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "session reaper stopped")
			return ctx.Err()
		case <-ticker.C:
			r.pruneOnce(ctx)
		}
	}
}

func (r *Runner) pruneOnce(ctx context.Context) {
	cutoff := time.Now().Add(-r.maxAge)

	removed, err := r.cases.PruneOlderThan(ctx, cutoff)
	if err != nil {
		r.logger.WarnContext(ctx, "session prune failed", "error", err)
		return
	}
	if r.metrics != nil {
		r.metrics.Count("sessions.reaped", int64(removed), nil)
	}
	if removed > 0 {
		r.logger.InfoContext(ctx, "pruned stale case sessions", "count", removed)
	}
}
