package usecase

import (
	"context"
	"fmt"
	"time"

	domainErrors "github.com/polkiloo/servenow/internal/domain/errors"
	"github.com/polkiloo/servenow/internal/domain/model"
	"github.com/polkiloo/servenow/internal/domain/repository"
)

// OrderUseCase encapsulates order reads and status writes.
type OrderUseCase struct {
	orders repository.OrderRepository
	now    func() time.Time
}

// NewOrderUseCase constructs OrderUseCase.
func NewOrderUseCase(orders repository.OrderRepository) *OrderUseCase {
	return &OrderUseCase{orders: orders, now: time.Now}
}

// Get returns the order with the given id.
func (u *OrderUseCase) Get(ctx context.Context, id string) (*model.Order, error) {
	id, err := NormalizeOrderID(id)
	if err != nil {
		return nil, err
	}
	return u.orders.GetByID(ctx, id)
}

// SetPaymentStatus writes a status supplied by a client. Only non-terminal
// statuses are accepted; settling an order is left to verification, the
// gateway webhook and the operator override.
func (u *OrderUseCase) SetPaymentStatus(ctx context.Context, id, raw string) (*model.Order, error) {
	id, err := NormalizeOrderID(id)
	if err != nil {
		return nil, err
	}
	status, err := model.ParsePaymentStatus(raw)
	if err != nil {
		return nil, err
	}
	if status.IsTerminal() {
		return nil, fmt.Errorf("%w: %s cannot be set by clients", domainErrors.ErrInvalidPaymentStatus, status)
	}
	return u.orders.UpdatePaymentStatus(ctx, id, status)
}

// StaleOrders claims unsettled orders untouched for longer than olderThan.
func (u *OrderUseCase) StaleOrders(ctx context.Context, olderThan time.Duration, limit int) ([]model.Order, error) {
	return u.orders.ClaimStale(ctx, u.now().Add(-olderThan), limit)
}
