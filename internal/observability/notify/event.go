package notify

import (
	"context"
	"time"
)

// Severity constants recognised by downstream sinks.
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
)

// Reason constants for case failure notifications.
const (
	ReasonAnalysisFailed    = "analysis_failed"
	ReasonResultUnavailable = "result_unavailable"
	ReasonPollTimeout       = "poll_timeout"
)

// CaseFailurePayload captures the canonical data emitted when a case
// fails to produce a usable analysis result.
type CaseFailurePayload struct {
	CaseID     string
	JobID      string
	Reason     string
	Error      string
	ErrorClass string
	Severity   string
	OccurredAt time.Time
	Metadata   map[string]string
}

// Sink describes a destination capable of consuming case failure notifications.
type Sink interface {
	SendCaseFailure(ctx context.Context, payload CaseFailurePayload) error
}

// SinkFunc adapts a function to the Sink interface (useful for tests).
type SinkFunc func(ctx context.Context, payload CaseFailurePayload) error

// SendCaseFailure implements the Sink interface.
func (f SinkFunc) SendCaseFailure(ctx context.Context, payload CaseFailurePayload) error {
	if f == nil {
		return nil
	}
	return f(ctx, payload)
}

// Fanout delivers each notification to every configured sink. A delivery
// error from one sink does not prevent delivery to the others.
type Fanout struct {
	sinks []Sink
}

// NewFanout builds a Fanout over the given sinks, skipping nil entries.
// Returns nil when no sink is configured so callers can treat the
// notifier as optional.
func NewFanout(sinks ...Sink) *Fanout {
	kept := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	return &Fanout{sinks: kept}
}

// SendCaseFailure implements the Sink interface, returning the last
// delivery error when any sink failed.
func (f *Fanout) SendCaseFailure(ctx context.Context, payload CaseFailurePayload) error {
	if f == nil {
		return nil
	}
	var lastErr error
	for _, s := range f.sinks {
		if err := s.SendCaseFailure(ctx, payload); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
