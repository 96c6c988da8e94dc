package app

import (
	"context"
	"log/slog"

	"github.com/jonboulle/clockwork"
	"go.uber.org/fx"

	"github.com/polkiloo/servenow/internal/config"
	"github.com/polkiloo/servenow/internal/confirmation"
	"github.com/polkiloo/servenow/internal/domain/model"
	"github.com/polkiloo/servenow/internal/metrics"
	"github.com/polkiloo/servenow/internal/usecase"
)

// HealthChecker reports whether backing storage is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// FacadeParams lists ServeNowFacade dependencies.
type FacadeParams struct {
	fx.In

	Orders   *usecase.OrderUseCase
	Payments *usecase.PaymentUseCase
	Feed     confirmation.Feed
	Health   HealthChecker
	Config   *config.Config
	Logger   *slog.Logger
	Metrics  *metrics.Metrics `optional:"true"`
}

// ServeNowFacade is the single entry point used by HTTP handlers, the sweeper
// and server-hosted confirmation sessions.
type ServeNowFacade struct {
	orders   *usecase.OrderUseCase
	payments *usecase.PaymentUseCase
	feed     confirmation.Feed
	health   HealthChecker
	cfg      *config.Config
	logger   *slog.Logger
	metrics  *metrics.Metrics
	clock    clockwork.Clock
}

func NewServeNowFacade(p FacadeParams) *ServeNowFacade {
	return &ServeNowFacade{
		orders:   p.Orders,
		payments: p.Payments,
		feed:     p.Feed,
		health:   p.Health,
		cfg:      p.Config,
		logger:   p.Logger,
		metrics:  p.Metrics,
		clock:    clockwork.NewRealClock(),
	}
}

func (f *ServeNowFacade) Order(ctx context.Context, id string) (*model.Order, error) {
	return f.orders.Get(ctx, id)
}

func (f *ServeNowFacade) SetPaymentStatus(ctx context.Context, id, status string) (*model.Order, error) {
	return f.orders.SetPaymentStatus(ctx, id, status)
}

func (f *ServeNowFacade) VerifyPayment(ctx context.Context, id string) (*model.Order, error) {
	return f.payments.Verify(ctx, id)
}

func (f *ServeNowFacade) HandleWebhook(ctx context.Context, event usecase.WebhookEvent) (*model.Order, error) {
	return f.payments.HandleWebhook(ctx, event)
}

func (f *ServeNowFacade) OverridePaymentStatus(ctx context.Context, id, status string) (*model.Order, error) {
	return f.payments.Override(ctx, id, status)
}

// SubscribeOrder opens a realtime subscription for a validated order id.
func (f *ServeNowFacade) SubscribeOrder(ctx context.Context, id string) (confirmation.Subscription, error) {
	id, err := usecase.NormalizeOrderID(id)
	if err != nil {
		return nil, err
	}
	return f.feed.Subscribe(ctx, id)
}

// NewConfirmation builds a server-hosted session for id. The caller runs it.
func (f *ServeNowFacade) NewConfirmation(id string, nav confirmation.Navigator, onEvent func(confirmation.Event)) (*confirmation.Session, error) {
	id, err := usecase.NormalizeOrderID(id)
	if err != nil {
		return nil, err
	}
	return confirmation.New(id, confirmation.Options{
		Orders:     f,
		Verifier:   f,
		Feed:       f.feed,
		Navigator:  nav,
		Clock:      f.clock,
		Logger:     f.logger,
		Timeout:    f.cfg.ConfirmationTimeout,
		RetryDelay: f.cfg.VerifyRetryDelay,
		OnEvent:    f.observe(onEvent),
	}), nil
}

func (f *ServeNowFacade) observe(onEvent func(confirmation.Event)) func(confirmation.Event) {
	return func(e confirmation.Event) {
		switch {
		case e.Type == confirmation.EventState && e.State == confirmation.StateLoading:
			f.metrics.SessionStarted()
		case e.Type == confirmation.EventOutcome && e.Outcome != nil:
			f.metrics.SessionFinished(string(e.Outcome.Kind))
		}
		if onEvent != nil {
			onEvent(e)
		}
	}
}

// StaleOrders claims unsettled orders older than the configured threshold.
func (f *ServeNowFacade) StaleOrders(ctx context.Context, limit int) ([]model.Order, error) {
	return f.orders.StaleOrders(ctx, f.cfg.StaleAfter, limit)
}

func (f *ServeNowFacade) Health(ctx context.Context) error {
	return f.health.HealthCheck(ctx)
}

// FetchOrder implements confirmation.OrderSource.
func (f *ServeNowFacade) FetchOrder(ctx context.Context, id string) (*model.Order, error) {
	return f.Order(ctx, id)
}

// RewriteStatus implements confirmation.OrderSource.
func (f *ServeNowFacade) RewriteStatus(ctx context.Context, id string, status model.PaymentStatus) error {
	_, err := f.orders.SetPaymentStatus(ctx, id, string(status))
	return err
}

// Verify implements confirmation.Verifier.
func (f *ServeNowFacade) Verify(ctx context.Context, id string) (*model.Order, error) {
	return f.VerifyPayment(ctx, id)
}
