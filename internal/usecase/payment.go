package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/polkiloo/servenow/internal/adapter/cashfree"
	domainErrors "github.com/polkiloo/servenow/internal/domain/errors"
	"github.com/polkiloo/servenow/internal/domain/model"
	"github.com/polkiloo/servenow/internal/domain/repository"
)

// Gateway webhook event types.
const (
	WebhookPaymentSuccess     = "PAYMENT_SUCCESS_WEBHOOK"
	WebhookPaymentFailed      = "PAYMENT_FAILED_WEBHOOK"
	WebhookPaymentUserDropped = "PAYMENT_USER_DROPPED_WEBHOOK"
)

// WebhookEvent is the part of a gateway notification the service acts on.
type WebhookEvent struct {
	Type          string
	OrderID       string
	PaymentID     string
	PaymentStatus string
}

// PaymentUseCase reconciles payment status with the gateway and other writers.
type PaymentUseCase struct {
	orders  repository.OrderRepository
	gateway cashfree.Client
	logger  *slog.Logger
}

// NewPaymentUseCase constructs PaymentUseCase.
func NewPaymentUseCase(orders repository.OrderRepository, gateway cashfree.Client, logger *slog.Logger) *PaymentUseCase {
	return &PaymentUseCase{orders: orders, gateway: gateway, logger: logger}
}

// Verify asks the gateway for the authoritative state of an order and stores it.
func (u *PaymentUseCase) Verify(ctx context.Context, id string) (*model.Order, error) {
	id, err := NormalizeOrderID(id)
	if err != nil {
		return nil, err
	}

	order, err := u.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.PaymentStatus.IsTerminal() {
		return order, nil
	}

	if !u.gateway.Configured() {
		u.logger.Warn("payment gateway not configured", slog.String("order", id))
		return u.write(ctx, id, model.PaymentStatusNotConfigured)
	}

	check, err := u.gateway.CheckPayment(ctx, id)
	if errors.Is(err, cashfree.ErrOrderNotFound) {
		u.logger.Info("gateway has no record of order yet", slog.String("order", id))
		return order, nil
	}
	if err != nil {
		return nil, fmt.Errorf("check payment: %w", err)
	}

	status := check.Status
	if !status.IsTerminal() {
		if order.PaymentStatus != model.PaymentStatusPending {
			return order, nil
		}
		status = model.PaymentStatusVerifying
	}
	u.logger.Debug("payment checked",
		slog.String("order", id),
		slog.String("gateway_status", check.GatewayStatus),
		slog.String("status", string(status)),
	)
	return u.write(ctx, id, status)
}

// HandleWebhook applies a gateway notification. Unknown event types and orders
// already settled are ignored and return a nil order.
func (u *PaymentUseCase) HandleWebhook(ctx context.Context, event WebhookEvent) (*model.Order, error) {
	var status model.PaymentStatus
	switch event.Type {
	case WebhookPaymentSuccess:
		status = model.PaymentStatusCompleted
	case WebhookPaymentFailed, WebhookPaymentUserDropped:
		status = model.PaymentStatusFailed
	default:
		u.logger.Debug("ignoring webhook", slog.String("type", event.Type))
		return nil, nil
	}

	id, err := NormalizeOrderID(event.OrderID)
	if err != nil {
		return nil, err
	}

	order, err := u.orders.UpdatePaymentStatus(ctx, id, status)
	switch {
	case errors.Is(err, domainErrors.ErrPaymentStatusFinal):
		u.logger.Info("webhook for settled order ignored", slog.String("order", id), slog.String("type", event.Type))
		return nil, nil
	case errors.Is(err, domainErrors.ErrNotFound):
		u.logger.Warn("webhook for unknown order", slog.String("order", id))
		return nil, nil
	case err != nil:
		return nil, err
	}
	return order, nil
}

// Override records a payment settled outside the gateway, for example cash at the table.
func (u *PaymentUseCase) Override(ctx context.Context, id, raw string) (*model.Order, error) {
	id, err := NormalizeOrderID(id)
	if err != nil {
		return nil, err
	}
	status, err := model.ParsePaymentStatus(raw)
	if err != nil {
		return nil, err
	}
	if status != model.PaymentStatusCompleted && status != model.PaymentStatusFailed {
		return nil, domainErrors.ErrInvalidPaymentStatus
	}
	u.logger.Info("operator override", slog.String("order", id), slog.String("status", string(status)))
	return u.orders.UpdatePaymentStatus(ctx, id, status)
}

// write stores status; losing a race to another terminal writer returns the stored order.
func (u *PaymentUseCase) write(ctx context.Context, id string, status model.PaymentStatus) (*model.Order, error) {
	order, err := u.orders.UpdatePaymentStatus(ctx, id, status)
	if errors.Is(err, domainErrors.ErrPaymentStatusFinal) {
		return u.orders.GetByID(ctx, id)
	}
	return order, err
}
