package confirmation

import (
	"net/url"

	"github.com/polkiloo/servenow/internal/domain/model"
)

// State is the page-level state of a session.
type State string

const (
	StateLoading       State = "loading"
	StateWatching      State = "watching"
	StateCompleted     State = "completed"
	StateFailed        State = "failed"
	StateNotConfigured State = "not_configured"
	StateFallback      State = "fallback"
	StateError         State = "error"
	StateAborted       State = "aborted"
)

// OutcomeKind tells how a session ended.
type OutcomeKind string

const (
	OutcomeSuccess       OutcomeKind = "success"
	OutcomeFailure       OutcomeKind = "failure"
	OutcomeFallback      OutcomeKind = "fallback"
	OutcomeNotConfigured OutcomeKind = "not_configured"
	OutcomeError         OutcomeKind = "error"
	OutcomeAborted       OutcomeKind = "aborted"
)

const (
	ReasonPaymentFailed       = "payment_failed"
	ReasonVerificationTimeout = "verification_timeout"

	CodeOrderNotFound = "ORDER_NOT_FOUND"
)

const (
	failurePath  = "/payment/failure"
	fallbackPath = "/payment/fallback"
)

// Outcome is the final result of a session.
type Outcome struct {
	Kind    OutcomeKind
	OrderID string
	Reason  string
	Code    string
	Order   *model.Order
	Err     error
}

// Target returns the redirect route for failure and fallback outcomes, or "".
func (o Outcome) Target() string {
	var path string
	switch o.Kind {
	case OutcomeFailure:
		path = failurePath
	case OutcomeFallback:
		path = fallbackPath
	default:
		return ""
	}
	q := url.Values{}
	q.Set("order_id", o.OrderID)
	q.Set("reason", o.Reason)
	return path + "?" + q.Encode()
}

func (o Outcome) state() State {
	switch o.Kind {
	case OutcomeSuccess:
		return StateCompleted
	case OutcomeFailure:
		return StateFailed
	case OutcomeNotConfigured:
		return StateNotConfigured
	case OutcomeFallback:
		return StateFallback
	case OutcomeAborted:
		return StateAborted
	default:
		return StateError
	}
}

// EventType names a session event.
type EventType string

const (
	EventState     EventType = "state"
	EventCountdown EventType = "countdown"
	EventOrder     EventType = "order"
	EventOutcome   EventType = "outcome"
)

// Event is emitted to the OnEvent observer from the session goroutine.
type Event struct {
	Type      EventType
	State     State
	Countdown int
	Order     *model.Order
	Outcome   *Outcome
}
