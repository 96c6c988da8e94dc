package usecase

import (
	"context"
	"sync"
	"time"

	domainErrors "github.com/polkiloo/servenow/internal/domain/errors"
	"github.com/polkiloo/servenow/internal/domain/model"
)

const (
	orderA = "9b2f7c1e-3a44-4f0e-9d8c-1b2a3c4d5e6f"
	orderB = "0c1d2e3f-4a5b-4c6d-8e7f-901234567890"
)

type memoryOrders struct {
	mu       sync.Mutex
	orders   map[string]model.Order
	writes   []model.PaymentStatus
	updateFn func(context.Context, string, model.PaymentStatus) (*model.Order, error)
	claimFn  func(context.Context, time.Time, int) ([]model.Order, error)
}

func newMemoryOrders(orders ...model.Order) *memoryOrders {
	m := &memoryOrders{orders: make(map[string]model.Order)}
	for _, o := range orders {
		m.orders[o.ID] = o
	}
	return m
}

func (m *memoryOrders) GetByID(_ context.Context, id string) (*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, domainErrors.ErrNotFound
	}
	return &o, nil
}

func (m *memoryOrders) UpdatePaymentStatus(ctx context.Context, id string, status model.PaymentStatus) (*model.Order, error) {
	m.mu.Lock()
	m.writes = append(m.writes, status)
	m.mu.Unlock()
	if m.updateFn != nil {
		return m.updateFn(ctx, id, status)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, domainErrors.ErrNotFound
	}
	if o.PaymentStatus.CanTransitionTo(status) {
		o.PaymentStatus = status
		m.orders[id] = o
	} else if o.PaymentStatus.IsTerminal() {
		return nil, domainErrors.ErrPaymentStatusFinal
	}
	return &o, nil
}

func (m *memoryOrders) ClaimStale(ctx context.Context, before time.Time, limit int) ([]model.Order, error) {
	if m.claimFn != nil {
		return m.claimFn(ctx, before, limit)
	}
	return nil, nil
}

func (m *memoryOrders) status(id string) model.PaymentStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[id].PaymentStatus
}

type stubGateway struct {
	notConfigured bool
	check         *model.PaymentCheck
	err           error
	calls         int
}

func (g *stubGateway) Configured() bool { return !g.notConfigured }

func (g *stubGateway) CheckPayment(_ context.Context, id string) (*model.PaymentCheck, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	if g.check != nil {
		return g.check, nil
	}
	return &model.PaymentCheck{OrderID: id, Status: model.PaymentStatusPending, GatewayStatus: "ACTIVE"}, nil
}
