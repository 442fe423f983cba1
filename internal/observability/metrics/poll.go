package metrics

import (
	"time"

	obserrors "github.com/LeHak0/Neuro-Triage/internal/observability/errors"
	"github.com/LeHak0/Neuro-Triage/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
)

// PollTick captures one status-poll tick for metric emission.
type PollTick struct {
	Result   string
	Duration time.Duration
	Err      error
}

// EmitPollTick emits standardised poll loop metrics.
func EmitPollTick(sink statsd.Sink, in PollTick) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"result": in.Result,
	}

	if in.Err != nil && in.Result == ResultError {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("poll.tick", 1, tags)

	if in.Duration > 0 {
		sink.Timing("poll.tick_duration", in.Duration, CloneTags(tags))
	}
}

// CaseEvent captures a case lifecycle transition for metric emission:
// submitted, settled, timed_out, superseded.
type CaseEvent struct {
	Transition string
	Result     string
	Err        error
}

// EmitCaseEvent emits standardised case lifecycle metrics.
func EmitCaseEvent(sink statsd.Sink, in CaseEvent) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"transition": in.Transition,
		"result":     in.Result,
	}

	if in.Err != nil && in.Result == ResultError {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("case.transition", 1, tags)
}

// CloneTags creates a shallow copy of a tag map, filtering out empty maps.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
