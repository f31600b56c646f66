package poller

import "time"

// OutcomeKind tags the result of one poll attempt. The retry loop
// consumes these instead of threading errors through control flow.
type OutcomeKind int

const (
	// OutcomeSuccess: the target responded alive. Terminal for the cycle.
	OutcomeSuccess OutcomeKind = iota
	// OutcomeContentFailure: a failure marker was present in the body.
	OutcomeContentFailure
	// OutcomeUnexpectedStatus: status code outside the accepted set.
	OutcomeUnexpectedStatus
	// OutcomeTransportError: timeout or connection-level failure.
	OutcomeTransportError
	// OutcomeNoTarget: resolution produced no usable URL this attempt.
	OutcomeNoTarget
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeContentFailure:
		return "content_failure"
	case OutcomeUnexpectedStatus:
		return "unexpected_status"
	case OutcomeTransportError:
		return "transport_error"
	case OutcomeNoTarget:
		return "no_target"
	default:
		return "unknown"
	}
}

// Retryable reports whether an attempt with this outcome should be
// followed by another attempt when the retry budget allows. Every
// non-success outcome is retryable, resolution failure included.
func (k OutcomeKind) Retryable() bool {
	return k != OutcomeSuccess
}

// AttemptResult is the ephemeral record of one poll attempt. It exists
// only for the duration of the retry loop and is fully described by its
// log and notification side effects.
type AttemptResult struct {
	Kind       OutcomeKind
	StatusCode int
	Target     string
	Latency    time.Duration
	Message    string
}
