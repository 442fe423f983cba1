package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/LeHak0/Neuro-Triage/internal/backend"
	"github.com/LeHak0/Neuro-Triage/internal/core"
	"github.com/LeHak0/Neuro-Triage/internal/data"
	"github.com/LeHak0/Neuro-Triage/internal/domain/model"
	obserrors "github.com/LeHak0/Neuro-Triage/internal/observability/errors"
	"github.com/LeHak0/Neuro-Triage/internal/observability/metrics"
	"github.com/LeHak0/Neuro-Triage/internal/observability/notify"
	"github.com/LeHak0/Neuro-Triage/internal/observability/statsd"
)

// Poller owns the status-poll loops for in-flight case sessions. Each
// session has at most one loop; starting a new run for a session cancels
// the previous loop before the first tick of the new one fires. Within a
// loop, ticks are strictly serialized: a slow status call delays the next
// tick rather than overlapping it.
type Poller struct {
	backend backend.API
	cases   core.CaseRepository

	interval    time.Duration
	maxDuration time.Duration

	logger   *slog.Logger
	metrics  statsd.Sink
	notifier notify.Sink
	time     data.TimeProvider

	mu    sync.Mutex
	loops map[string]*pollLoop
	wg    sync.WaitGroup
}

type pollLoop struct {
	jobID  string
	cancel context.CancelFunc
}

// PollerOptions groups dependencies for the Poller.
type PollerOptions struct {
	Backend backend.API
	Cases   core.CaseRepository
	// Interval between status ticks. The first tick fires immediately.
	Interval time.Duration
	// MaxDuration bounds a single loop; on expiry the session settles as
	// "result unavailable" instead of polling forever.
	MaxDuration time.Duration
	Logger      *slog.Logger
	Metrics     statsd.Sink
	// Notifier receives case failure notifications. Optional.
	Notifier notify.Sink
	Time     data.TimeProvider
}

// NewPoller constructs a Poller with defaults applied.
func NewPoller(opts PollerOptions) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = 1500 * time.Millisecond
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = 15 * time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Time == nil {
		opts.Time = &data.RealTimeProvider{}
	}
	return &Poller{
		backend:     opts.Backend,
		cases:       opts.Cases,
		interval:    opts.Interval,
		maxDuration: opts.MaxDuration,
		logger:      opts.Logger,
		metrics:     opts.Metrics,
		notifier:    opts.Notifier,
		time:        opts.Time,
		loops:       make(map[string]*pollLoop),
	}
}

// Start launches a poll loop for the given case and job handle. Any loop
// already running for the case is cancelled first, so a resubmission
// supersedes the previous run.
func (p *Poller) Start(ctx context.Context, caseID, jobID string) {
	p.mu.Lock()
	if prev, ok := p.loops[caseID]; ok {
		prev.cancel()
		metrics.EmitCaseEvent(p.metrics, metrics.CaseEvent{
			Transition: "superseded",
			Result:     metrics.ResultSuccess,
		})
	}
	loopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.maxDuration)
	p.loops[caseID] = &pollLoop{jobID: jobID, cancel: cancel}
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer cancel()
		p.run(loopCtx, caseID, jobID)
		p.release(caseID, jobID)
	}()
}

// Stop cancels the poll loop for a case, if one is running.
func (p *Poller) Stop(caseID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if loop, ok := p.loops[caseID]; ok {
		loop.cancel()
		delete(p.loops, caseID)
	}
}

// Shutdown cancels all loops and waits for them to drain.
func (p *Poller) Shutdown() {
	p.mu.Lock()
	for _, loop := range p.loops {
		loop.cancel()
	}
	p.loops = make(map[string]*pollLoop)
	p.mu.Unlock()
	p.wg.Wait()
}

// Polling reports whether a loop is currently registered for the case.
func (p *Poller) Polling(caseID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.loops[caseID]
	return ok
}

// release drops the loop registration, but only if it still belongs to
// this run. A superseding Start has already replaced the entry.
func (p *Poller) release(caseID, jobID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if loop, ok := p.loops[caseID]; ok && loop.jobID == jobID {
		delete(p.loops, caseID)
	}
}

// run drives the tick loop until the job settles, the context is
// cancelled, or the loop deadline expires. Tick errors are logged and
// swallowed; the loop keeps going.
func (p *Poller) run(ctx context.Context, caseID, jobID string) {
	log := p.logger.With("case_id", caseID, "job_id", jobID)
	log.Info("poll loop started", "interval", p.interval)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	// Immediate first tick; the ticker covers the rest.
	if done := p.tick(ctx, caseID, jobID, log); done {
		return
	}

	for {
		select {
		case <-ctx.Done():
			p.handleLoopEnd(ctx, caseID, jobID, log)
			return
		case <-ticker.C:
			if done := p.tick(ctx, caseID, jobID, log); done {
				return
			}
		}
	}
}

// tick performs one status fetch and applies the snapshot. It returns
// true when the loop should stop: job settled or the session vanished.
func (p *Poller) tick(ctx context.Context, caseID, jobID string, log *slog.Logger) bool {
	start := time.Now()
	st, err := p.backend.Status(ctx, jobID)
	elapsed := time.Since(start)

	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		metrics.EmitPollTick(p.metrics, metrics.PollTick{
			Result:   metrics.ResultError,
			Duration: elapsed,
			Err:      err,
		})
		log.Warn("status poll failed, will retry", "error", err)
		return false
	}

	applied, settled, err := p.applyStatus(ctx, caseID, jobID, st)
	if err != nil {
		// A failing session store is no more fatal than a failing status
		// call: keep the loop alive and apply the next snapshot instead.
		metrics.EmitPollTick(p.metrics, metrics.PollTick{
			Result:   metrics.ResultError,
			Duration: elapsed,
			Err:      err,
		})
		log.Warn("case store update failed, will retry", "error", err)
		return false
	}

	result := metrics.ResultSuccess
	if !applied {
		result = metrics.ResultNoop
	}
	metrics.EmitPollTick(p.metrics, metrics.PollTick{
		Result:   result,
		Duration: elapsed,
	})

	if !applied {
		// Session gone or handle superseded: nothing left to poll for.
		log.Info("poll loop detached, status discarded")
		return true
	}
	if settled {
		p.settle(ctx, caseID, jobID, log)
		return true
	}
	return false
}

// applyStatus loads the session, applies the snapshot, and persists it.
// applied=false with a nil error means the loop is detached for good:
// the session is gone or the handle was superseded. A non-nil error is
// a store failure the caller may retry on the next tick.
func (p *Poller) applyStatus(ctx context.Context, caseID, jobID string, st *model.JobStatus) (applied, settled bool, err error) {
	sess, err := p.cases.GetByID(ctx, caseID)
	if err != nil {
		if errors.Is(err, data.ErrNotFound) {
			return false, false, nil
		}
		return false, false, err
	}
	if !sess.ApplyStatus(jobID, *st, p.time.Now()) {
		return false, false, nil
	}
	if err := p.cases.Save(ctx, sess); err != nil {
		return false, false, err
	}
	return true, st.Status.IsTerminal(), nil
}

// settle performs the one-shot result fetch for a terminal job. The
// fetch happens exactly once per run: for completed jobs it carries the
// payload, for failed jobs the error detail. A failed fetch settles the
// session as "result unavailable" rather than retrying.
func (p *Poller) settle(ctx context.Context, caseID, jobID string, log *slog.Logger) {
	env, err := p.backend.Result(ctx, jobID)
	if err != nil {
		log.Error("result fetch failed", "error", err)
		p.markUnavailable(ctx, caseID, jobID, "analysis result could not be retrieved")
		metrics.EmitCaseEvent(p.metrics, metrics.CaseEvent{
			Transition: "settled",
			Result:     metrics.ResultError,
			Err:        err,
		})
		p.notifyFailure(ctx, caseID, jobID, notify.ReasonResultUnavailable, err.Error(), err)
		return
	}

	sess, err := p.cases.GetByID(ctx, caseID)
	if err != nil {
		if !errors.Is(err, data.ErrNotFound) {
			log.Error("load case for result", "error", err)
		}
		return
	}
	if !sess.ApplyResult(jobID, env, p.time.Now()) {
		return
	}
	if err := p.cases.Save(ctx, sess); err != nil {
		log.Error("save case result", "error", err)
		return
	}

	log.Info("case settled", "status", env.Status)
	metrics.EmitCaseEvent(p.metrics, metrics.CaseEvent{
		Transition: "settled",
		Result:     metrics.ResultSuccess,
	})
	if env.Status == model.JobStateFailed {
		p.notifyFailure(ctx, caseID, jobID, notify.ReasonAnalysisFailed, env.Error, nil)
	}
}

// handleLoopEnd distinguishes cancellation (supersession, shutdown) from
// the loop deadline. Only the deadline settles the session.
func (p *Poller) handleLoopEnd(ctx context.Context, caseID, jobID string, log *slog.Logger) {
	if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
		log.Info("poll loop cancelled")
		return
	}
	log.Warn("poll loop deadline exceeded", "max_duration", p.maxDuration)
	p.markUnavailable(context.WithoutCancel(ctx), caseID, jobID, "analysis timed out")
	metrics.EmitCaseEvent(p.metrics, metrics.CaseEvent{
		Transition: "timed_out",
		Result:     metrics.ResultError,
	})
	p.notifyFailure(ctx, caseID, jobID, notify.ReasonPollTimeout, "no terminal state within "+p.maxDuration.String(), nil)
}

// notifyFailure delivers a case failure notification to the configured
// sink. The loop context may already be done, so delivery runs against a
// fresh bounded context.
func (p *Poller) notifyFailure(ctx context.Context, caseID, jobID, reason, detail string, cause error) {
	if p.notifier == nil {
		return
	}

	payload := notify.CaseFailurePayload{
		CaseID:     caseID,
		JobID:      jobID,
		Reason:     reason,
		Error:      detail,
		Severity:   notify.SeverityCritical,
		OccurredAt: p.time.Now(),
	}
	if cause != nil {
		payload.ErrorClass = obserrors.Classify(cause)
	}

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()
	if err := p.notifier.SendCaseFailure(sendCtx, payload); err != nil {
		p.logger.Warn("case failure notification delivery failed",
			"case_id", caseID, "job_id", jobID, "error", err)
	}
}

func (p *Poller) markUnavailable(ctx context.Context, caseID, jobID, reason string) {
	sess, err := p.cases.GetByID(ctx, caseID)
	if err != nil {
		return
	}
	if !sess.MarkResultUnavailable(jobID, reason, p.time.Now()) {
		return
	}
	if err := p.cases.Save(ctx, sess); err != nil {
		p.logger.Error("save unavailable case", "case_id", caseID, "error", err)
	}
}
