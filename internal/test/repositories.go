package test

import (
	"context"
	"sync"
	"time"

	domainErrors "github.com/polkiloo/servenow/internal/domain/errors"
	"github.com/polkiloo/servenow/internal/domain/model"
)

// OrderRepositoryStub stores orders in-memory and applies the same monotonic
// status rules as the database repository. Fn overrides take precedence.
type OrderRepositoryStub struct {
	GetByIDFn             func(context.Context, string) (*model.Order, error)
	UpdatePaymentStatusFn func(context.Context, string, model.PaymentStatus) (*model.Order, error)
	ClaimStaleFn          func(context.Context, time.Time, int) ([]model.Order, error)

	mu          sync.Mutex
	Orders      map[string]*model.Order
	UpdateCalls []OrderUpdateCall
	ClaimCalls  []time.Time
}

// OrderUpdateCall stores information about UpdatePaymentStatus invocations.
type OrderUpdateCall struct {
	OrderID string
	Status  model.PaymentStatus
}

// NewOrderRepositoryStub constructs a stub seeded with orders.
func NewOrderRepositoryStub(orders ...model.Order) *OrderRepositoryStub {
	s := &OrderRepositoryStub{Orders: make(map[string]*model.Order)}
	for _, o := range orders {
		order := o
		s.Orders[o.ID] = &order
	}
	return s
}

// GetByID returns a copy of the stored order or not found.
func (s *OrderRepositoryStub) GetByID(ctx context.Context, id string) (*model.Order, error) {
	if s.GetByIDFn != nil {
		return s.GetByIDFn(ctx, id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if order, ok := s.Orders[id]; ok {
		copied := *order
		return &copied, nil
	}
	return nil, domainErrors.ErrNotFound
}

// UpdatePaymentStatus records the call and applies the transition when allowed.
func (s *OrderRepositoryStub) UpdatePaymentStatus(ctx context.Context, id string, status model.PaymentStatus) (*model.Order, error) {
	s.mu.Lock()
	s.UpdateCalls = append(s.UpdateCalls, OrderUpdateCall{OrderID: id, Status: status})
	s.mu.Unlock()

	if s.UpdatePaymentStatusFn != nil {
		return s.UpdatePaymentStatusFn(ctx, id, status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.Orders[id]
	if !ok {
		return nil, domainErrors.ErrNotFound
	}
	if order.PaymentStatus.CanTransitionTo(status) {
		order.PaymentStatus = status
	} else if order.PaymentStatus.IsTerminal() {
		return nil, domainErrors.ErrPaymentStatusFinal
	}
	copied := *order
	return &copied, nil
}

// ClaimStale records the cutoff and returns unsettled orders.
func (s *OrderRepositoryStub) ClaimStale(ctx context.Context, updatedBefore time.Time, limit int) ([]model.Order, error) {
	s.mu.Lock()
	s.ClaimCalls = append(s.ClaimCalls, updatedBefore)
	s.mu.Unlock()

	if s.ClaimStaleFn != nil {
		return s.ClaimStaleFn(ctx, updatedBefore, limit)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Order
	for _, order := range s.Orders {
		if len(out) == limit {
			break
		}
		if !order.PaymentStatus.IsTerminal() {
			out = append(out, *order)
		}
	}
	return out, nil
}

// Updates returns a snapshot of recorded status writes.
func (s *OrderRepositoryStub) Updates() []OrderUpdateCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]OrderUpdateCall(nil), s.UpdateCalls...)
}

// Status returns the stored status of id.
func (s *OrderRepositoryStub) Status(id string) model.PaymentStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if order, ok := s.Orders[id]; ok {
		return order.PaymentStatus
	}
	return ""
}
