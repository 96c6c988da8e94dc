package repository

import (
	"context"
	"time"

	"github.com/polkiloo/servenow/internal/domain/model"
)

// OrderRepository describes persistence operations with orders.
type OrderRepository interface {
	GetByID(ctx context.Context, id string) (*model.Order, error)
	// UpdatePaymentStatus applies a monotonic status write and returns the stored order.
	UpdatePaymentStatus(ctx context.Context, id string, status model.PaymentStatus) (*model.Order, error)
	// ClaimStale returns non-terminal orders untouched since updatedBefore and bumps their
	// updated_at so concurrent sweepers skip them.
	ClaimStale(ctx context.Context, updatedBefore time.Time, limit int) ([]model.Order, error)
}
