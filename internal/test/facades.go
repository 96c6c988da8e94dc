package test

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/polkiloo/servenow/internal/confirmation"
	domainErrors "github.com/polkiloo/servenow/internal/domain/errors"
	"github.com/polkiloo/servenow/internal/domain/model"
	"github.com/polkiloo/servenow/internal/usecase"
)

// ServeNowFacadeStub provides controllable behaviour for HTTP handlers.
type ServeNowFacadeStub struct {
	OrderFn           func(context.Context, string) (*model.Order, error)
	SetStatusFn       func(context.Context, string, string) (*model.Order, error)
	VerifyFn          func(context.Context, string) (*model.Order, error)
	WebhookFn         func(context.Context, usecase.WebhookEvent) (*model.Order, error)
	OverrideFn        func(context.Context, string, string) (*model.Order, error)
	SubscribeFn       func(context.Context, string) (confirmation.Subscription, error)
	NewConfirmationFn func(string, confirmation.Navigator, func(confirmation.Event)) (*confirmation.Session, error)
	HealthFn          func(context.Context) error

	// Clock drives sessions built by the default NewConfirmation.
	Clock   clockwork.Clock
	Timeout time.Duration
}

// Order returns configured order or a pending one.
func (s ServeNowFacadeStub) Order(ctx context.Context, id string) (*model.Order, error) {
	if s.OrderFn != nil {
		return s.OrderFn(ctx, id)
	}
	return &model.Order{ID: id, PaymentStatus: model.PaymentStatusPending}, nil
}

// SetPaymentStatus delegates or echoes the requested status. Terminal statuses
// are rejected like the real use case does.
func (s ServeNowFacadeStub) SetPaymentStatus(ctx context.Context, id, status string) (*model.Order, error) {
	if s.SetStatusFn != nil {
		return s.SetStatusFn(ctx, id, status)
	}
	parsed, err := model.ParsePaymentStatus(status)
	if err != nil {
		return nil, err
	}
	if parsed.IsTerminal() {
		return nil, domainErrors.ErrInvalidPaymentStatus
	}
	return &model.Order{ID: id, PaymentStatus: parsed}, nil
}

// VerifyPayment delegates or returns a completed order.
func (s ServeNowFacadeStub) VerifyPayment(ctx context.Context, id string) (*model.Order, error) {
	if s.VerifyFn != nil {
		return s.VerifyFn(ctx, id)
	}
	return &model.Order{ID: id, PaymentStatus: model.PaymentStatusCompleted}, nil
}

// HandleWebhook delegates or ignores the event.
func (s ServeNowFacadeStub) HandleWebhook(ctx context.Context, event usecase.WebhookEvent) (*model.Order, error) {
	if s.WebhookFn != nil {
		return s.WebhookFn(ctx, event)
	}
	return nil, nil
}

// OverridePaymentStatus delegates or echoes the requested status.
func (s ServeNowFacadeStub) OverridePaymentStatus(ctx context.Context, id, status string) (*model.Order, error) {
	if s.OverrideFn != nil {
		return s.OverrideFn(ctx, id, status)
	}
	return &model.Order{ID: id, PaymentStatus: model.PaymentStatus(status)}, nil
}

// SubscribeOrder delegates or returns an idle subscription.
func (s ServeNowFacadeStub) SubscribeOrder(ctx context.Context, id string) (confirmation.Subscription, error) {
	if s.SubscribeFn != nil {
		return s.SubscribeFn(ctx, id)
	}
	return NewSubscriptionStub(0), nil
}

// NewConfirmation delegates or builds a real session over the stub's own order functions.
func (s ServeNowFacadeStub) NewConfirmation(id string, nav confirmation.Navigator, onEvent func(confirmation.Event)) (*confirmation.Session, error) {
	if s.NewConfirmationFn != nil {
		return s.NewConfirmationFn(id, nav, onEvent)
	}
	return confirmation.New(id, confirmation.Options{
		Orders:    facadeSource{s},
		Verifier:  facadeSource{s},
		Feed:      facadeSource{s},
		Navigator: nav,
		Clock:     s.Clock,
		Timeout:   s.Timeout,
		OnEvent:   onEvent,
	}), nil
}

// Health delegates or reports healthy.
func (s ServeNowFacadeStub) Health(ctx context.Context) error {
	if s.HealthFn != nil {
		return s.HealthFn(ctx)
	}
	return nil
}

type facadeSource struct {
	stub ServeNowFacadeStub
}

func (f facadeSource) FetchOrder(ctx context.Context, id string) (*model.Order, error) {
	return f.stub.Order(ctx, id)
}

func (f facadeSource) RewriteStatus(ctx context.Context, id string, status model.PaymentStatus) error {
	_, err := f.stub.SetPaymentStatus(ctx, id, string(status))
	return err
}

func (f facadeSource) Verify(ctx context.Context, id string) (*model.Order, error) {
	return f.stub.VerifyPayment(ctx, id)
}

func (f facadeSource) Subscribe(ctx context.Context, id string) (confirmation.Subscription, error) {
	return f.stub.SubscribeOrder(ctx, id)
}

// SubscriptionStub is a channel-backed subscription controlled by tests.
type SubscriptionStub struct {
	Ch           chan model.Order
	once         sync.Once
	unsubscribed atomic.Bool
}

// NewSubscriptionStub creates a subscription with the given buffer.
func NewSubscriptionStub(buffer int) *SubscriptionStub {
	return &SubscriptionStub{Ch: make(chan model.Order, buffer)}
}

// Updates returns the update channel.
func (s *SubscriptionStub) Updates() <-chan model.Order { return s.Ch }

// Unsubscribe closes the channel once.
func (s *SubscriptionStub) Unsubscribe() {
	s.once.Do(func() {
		s.unsubscribed.Store(true)
		close(s.Ch)
	})
}

// Unsubscribed reports whether Unsubscribe was called.
func (s *SubscriptionStub) Unsubscribed() bool { return s.unsubscribed.Load() }

// SweepFacadeStub mimics sweeper interactions with the application facade.
type SweepFacadeStub struct {
	Batches  [][]model.Order
	StaleFn  func(context.Context, int) ([]model.Order, error)
	VerifyFn func(context.Context, string) (*model.Order, error)

	mu         sync.Mutex
	verified   []string
	staleCalls int32
}

// StaleOrders returns batches from the configured queue, then nothing.
func (s *SweepFacadeStub) StaleOrders(ctx context.Context, limit int) ([]model.Order, error) {
	if s.StaleFn != nil {
		return s.StaleFn(ctx, limit)
	}
	call := atomic.AddInt32(&s.staleCalls, 1)
	if int(call) <= len(s.Batches) {
		return s.Batches[call-1], nil
	}
	return nil, nil
}

// VerifyPayment records the id and delegates or returns a completed order.
func (s *SweepFacadeStub) VerifyPayment(ctx context.Context, id string) (*model.Order, error) {
	s.mu.Lock()
	s.verified = append(s.verified, id)
	s.mu.Unlock()
	if s.VerifyFn != nil {
		return s.VerifyFn(ctx, id)
	}
	if id == "" {
		return nil, domainErrors.ErrInvalidOrderID
	}
	return &model.Order{ID: id, PaymentStatus: model.PaymentStatusCompleted}, nil
}

// Verified returns ids passed to VerifyPayment so far.
func (s *SweepFacadeStub) Verified() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.verified...)
}
