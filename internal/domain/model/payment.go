package model

import (
	"strings"

	domainErrors "github.com/polkiloo/servenow/internal/domain/errors"
)

// PaymentStatus describes where an order is in payment confirmation.
type PaymentStatus string

const (
	PaymentStatusPending       PaymentStatus = "pending"
	PaymentStatusVerifying     PaymentStatus = "verifying"
	PaymentStatusCompleted     PaymentStatus = "completed"
	PaymentStatusFailed        PaymentStatus = "failed"
	PaymentStatusNotConfigured PaymentStatus = "not_configured"
)

// ParsePaymentStatus accepts only known status values.
func ParsePaymentStatus(raw string) (PaymentStatus, error) {
	status := PaymentStatus(strings.ToLower(strings.TrimSpace(raw)))
	if !status.Valid() {
		return "", domainErrors.ErrInvalidPaymentStatus
	}
	return status, nil
}

// NormalizePaymentStatus maps unknown values coming from the backend to pending,
// so an unexpected string never reads as a final outcome.
func NormalizePaymentStatus(raw string) PaymentStatus {
	status, err := ParsePaymentStatus(raw)
	if err != nil {
		return PaymentStatusPending
	}
	return status
}

// Valid reports whether the status is one of the known values.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusVerifying, PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusNotConfigured:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is expected.
func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusNotConfigured:
		return true
	}
	return false
}

// CanTransitionTo reports whether moving from s to next keeps the status monotonic.
// Rewriting a terminal status with the same value is allowed and is a no-op.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	if !next.Valid() {
		return false
	}
	if s.IsTerminal() {
		return s == next
	}
	return rank(next) >= rank(s)
}

func rank(s PaymentStatus) int {
	switch s {
	case PaymentStatusPending:
		return 0
	case PaymentStatusVerifying:
		return 1
	default:
		return 2
	}
}

// PaymentCheck is the gateway's authoritative answer for an order.
type PaymentCheck struct {
	OrderID       string
	Status        PaymentStatus
	GatewayStatus string
	PaymentID     string
}
