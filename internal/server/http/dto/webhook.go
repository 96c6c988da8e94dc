package dto

import (
	"strconv"

	"github.com/polkiloo/servenow/internal/usecase"
)

// WebhookRequest is the subset of a Cashfree payment webhook the service reads.
type WebhookRequest struct {
	Type      string `json:"type"`
	EventTime string `json:"event_time"`
	Data      struct {
		Order struct {
			OrderID string `json:"order_id"`
		} `json:"order"`
		Payment struct {
			CfPaymentID   any    `json:"cf_payment_id"`
			PaymentStatus string `json:"payment_status"`
		} `json:"payment"`
	} `json:"data"`
}

// Event converts the payload to a use case event.
func (w WebhookRequest) Event() usecase.WebhookEvent {
	event := usecase.WebhookEvent{
		Type:          w.Type,
		OrderID:       w.Data.Order.OrderID,
		PaymentStatus: w.Data.Payment.PaymentStatus,
	}
	switch id := w.Data.Payment.CfPaymentID.(type) {
	case string:
		event.PaymentID = id
	case float64:
		event.PaymentID = strconv.FormatFloat(id, 'f', -1, 64)
	}
	return event
}

// OverrideRequest is the operator override body.
type OverrideRequest struct {
	PaymentStatus string `json:"payment_status"`
	Note          string `json:"note"`
}
