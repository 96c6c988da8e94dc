package test

import (
	"context"
	"sync/atomic"

	"github.com/polkiloo/servenow/internal/domain/model"
)

// GatewayStub answers payment checks with configured data.
type GatewayStub struct {
	NotConfigured bool
	CheckFn       func(context.Context, string) (*model.PaymentCheck, error)
	Status        model.PaymentStatus
	Err           error

	calls atomic.Int32
}

// Configured reports true unless NotConfigured is set.
func (g *GatewayStub) Configured() bool { return !g.NotConfigured }

// CheckPayment returns configured response or a pending check.
func (g *GatewayStub) CheckPayment(ctx context.Context, orderID string) (*model.PaymentCheck, error) {
	g.calls.Add(1)
	if g.CheckFn != nil {
		return g.CheckFn(ctx, orderID)
	}
	if g.Err != nil {
		return nil, g.Err
	}
	status := g.Status
	if status == "" {
		status = model.PaymentStatusPending
	}
	return &model.PaymentCheck{OrderID: orderID, Status: status}, nil
}

// Calls returns the number of CheckPayment invocations.
func (g *GatewayStub) Calls() int { return int(g.calls.Load()) }
