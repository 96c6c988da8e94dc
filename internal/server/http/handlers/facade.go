package handlers

import (
	"context"

	"github.com/polkiloo/servenow/internal/confirmation"
	"github.com/polkiloo/servenow/internal/domain/model"
	"github.com/polkiloo/servenow/internal/usecase"
)

// OrderFacade encapsulates order operations exposed via HTTP.
type OrderFacade interface {
	Order(ctx context.Context, id string) (*model.Order, error)
	SetPaymentStatus(ctx context.Context, id, status string) (*model.Order, error)
	SubscribeOrder(ctx context.Context, id string) (confirmation.Subscription, error)
}

// PaymentFacade provides payment reconciliation operations.
type PaymentFacade interface {
	VerifyPayment(ctx context.Context, id string) (*model.Order, error)
	HandleWebhook(ctx context.Context, event usecase.WebhookEvent) (*model.Order, error)
	OverridePaymentStatus(ctx context.Context, id, status string) (*model.Order, error)
}

// ConfirmationFacade creates server-hosted confirmation sessions.
type ConfirmationFacade interface {
	NewConfirmation(id string, nav confirmation.Navigator, onEvent func(confirmation.Event)) (*confirmation.Session, error)
}

// HealthFacade reports backend health.
type HealthFacade interface {
	Health(ctx context.Context) error
}

// ServeNowFacade aggregates the full set of operations used across handlers.
type ServeNowFacade interface {
	OrderFacade
	PaymentFacade
	ConfirmationFacade
	HealthFacade
}

// SignatureVerifier checks webhook signatures.
type SignatureVerifier interface {
	Verify(timestamp string, body []byte, signature string) error
}
