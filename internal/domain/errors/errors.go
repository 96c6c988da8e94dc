package errors

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrInvalidOrderID       = errors.New("invalid order id")
	ErrInvalidPaymentStatus = errors.New("invalid payment status")
	ErrPaymentStatusFinal   = errors.New("payment status is final")
	ErrGatewayNotConfigured = errors.New("payment gateway not configured")
	ErrInvalidSignature     = errors.New("invalid signature")
	ErrUnauthorized         = errors.New("unauthorized")
)
