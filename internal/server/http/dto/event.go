package dto

import "github.com/polkiloo/servenow/internal/confirmation"

// Server-sent event names on confirmation and order streams.
const (
	EventState     = "state"
	EventCountdown = "countdown"
	EventOrder     = "order"
	EventRedirect  = "redirect"
	EventOutcome   = "outcome"
)

// StateEvent carries a session state change.
type StateEvent struct {
	State string `json:"state"`
}

// CountdownEvent carries the seconds left before fallback.
type CountdownEvent struct {
	Remaining int `json:"remaining"`
}

// RedirectEvent asks the viewer to navigate.
type RedirectEvent struct {
	Target string `json:"target"`
}

// OutcomeEvent is the final message of a confirmation stream.
type OutcomeEvent struct {
	Kind    string         `json:"kind"`
	OrderID string         `json:"order_id"`
	Reason  string         `json:"reason,omitempty"`
	Code    string         `json:"code,omitempty"`
	Error   string         `json:"error,omitempty"`
	Target  string         `json:"target,omitempty"`
	Order   *OrderResponse `json:"order,omitempty"`
}

// FromOutcome converts a session outcome.
func FromOutcome(out confirmation.Outcome) OutcomeEvent {
	event := OutcomeEvent{
		Kind:    string(out.Kind),
		OrderID: out.OrderID,
		Reason:  out.Reason,
		Code:    out.Code,
		Target:  out.Target(),
		Order:   OrderPtr(out.Order),
	}
	if out.Err != nil {
		event.Error = out.Err.Error()
	}
	return event
}
