package confirmation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	domainErrors "github.com/polkiloo/servenow/internal/domain/errors"
	"github.com/polkiloo/servenow/internal/domain/model"
)

const (
	DefaultTimeout    = 15 * time.Second
	DefaultRetryDelay = 3 * time.Second
)

// ErrAlreadyRunning is returned in the outcome of a second Run call.
var ErrAlreadyRunning = errors.New("confirmation session already running")

// Options configures a Session. Orders and Verifier are required.
type Options struct {
	Orders    OrderSource
	Verifier  Verifier
	Feed      Feed
	Navigator Navigator
	Store     Store
	Clock     clockwork.Clock
	Logger    *slog.Logger

	Timeout    time.Duration
	RetryDelay time.Duration

	// OnEvent is called synchronously from the session goroutine.
	OnEvent func(Event)
}

type verifyResult struct {
	order *model.Order
	err   error
}

// Session watches one order until its payment reaches a terminal status,
// the countdown runs out, or the context is cancelled.
//
// Every field below the channels is owned by the goroutine executing Run.
type Session struct {
	orderID string
	opts    Options
	logger  *slog.Logger
	clock   clockwork.Clock

	started atomic.Bool
	checks  chan chan bool
	results chan verifyResult
	done    chan struct{}

	order     model.Order
	remaining int
	active    bool
	checking  bool
	resolved  bool
	// retryDue is set when the retry fired while the first check was still running.
	retryDue bool

	ticker       clockwork.Ticker
	retry        clockwork.Timer
	sub          Subscription
	cancelVerify context.CancelFunc
	tornDown     bool
}

// New creates a session for orderID.
func New(orderID string, opts Options) *Session {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Session{
		orderID: orderID,
		opts:    opts,
		logger:  logger.With(slog.String("order", orderID)),
		clock:   clock,
		checks:  make(chan chan bool),
		results: make(chan verifyResult, 1),
		done:    make(chan struct{}),
	}
}

// OrderID returns the watched order id.
func (s *Session) OrderID() string { return s.orderID }

// Done is closed when Run returns.
func (s *Session) Done() <-chan struct{} { return s.done }

// CheckNow asks a watching session to verify immediately. It reports whether a
// verification call was started; requests made while one is in flight are dropped.
func (s *Session) CheckNow(ctx context.Context) bool {
	reply := make(chan bool, 1)
	select {
	case s.checks <- reply:
	case <-s.done:
		return false
	case <-ctx.Done():
		return false
	}
	select {
	case started := <-reply:
		return started
	case <-ctx.Done():
		return false
	}
}

// Run drives the session to completion. It must be called once.
func (s *Session) Run(ctx context.Context) Outcome {
	if !s.started.CompareAndSwap(false, true) {
		return Outcome{Kind: OutcomeError, OrderID: s.orderID, Err: ErrAlreadyRunning}
	}
	defer close(s.done)

	s.emit(Event{Type: EventState, State: StateLoading})

	order, err := s.opts.Orders.FetchOrder(ctx, s.orderID)
	if err != nil {
		if ctx.Err() != nil {
			return s.finish(s.outcome(OutcomeAborted, ""))
		}
		s.logger.Warn("load order failed", slog.String("error", err.Error()))
		out := s.outcome(OutcomeError, "")
		out.Err = err
		if errors.Is(err, domainErrors.ErrNotFound) {
			out.Code = CodeOrderNotFound
		}
		return s.finish(out)
	}
	if order == nil {
		out := s.outcome(OutcomeError, "")
		out.Code = CodeOrderNotFound
		out.Err = domainErrors.ErrNotFound
		return s.finish(out)
	}

	s.order = *order
	s.emitOrder()

	if out, ok := s.resolve(); ok {
		return s.finish(out)
	}

	if s.order.PaymentStatus == model.PaymentStatusPending {
		go s.rewriteVerifying(ctx)
		s.order.PaymentStatus = model.PaymentStatusVerifying
		s.emitOrder()
	}

	return s.watch(ctx)
}

func (s *Session) rewriteVerifying(ctx context.Context) {
	if err := s.opts.Orders.RewriteStatus(ctx, s.orderID, model.PaymentStatusVerifying); err != nil {
		s.logger.Warn("optimistic status rewrite failed", slog.String("error", err.Error()))
	}
}

func (s *Session) watch(ctx context.Context) Outcome {
	verifyCtx, cancel := context.WithCancel(ctx)
	s.cancelVerify = cancel
	defer s.teardown()

	s.active = true
	s.remaining = int(s.opts.Timeout / time.Second)
	if s.remaining < 1 {
		s.remaining = 1
	}
	s.stash()

	s.ticker = s.clock.NewTicker(time.Second)
	s.retry = s.clock.NewTimer(s.opts.RetryDelay)

	var updates <-chan model.Order
	if s.opts.Feed != nil {
		sub, err := s.opts.Feed.Subscribe(verifyCtx, s.orderID)
		if err != nil {
			s.logger.Warn("realtime subscription failed", slog.String("error", err.Error()))
		} else {
			s.sub = sub
			updates = sub.Updates()
		}
	}

	s.emit(Event{Type: EventState, State: StateWatching})
	s.emit(Event{Type: EventCountdown, Countdown: s.remaining})

	s.startVerify(verifyCtx)

	for {
		select {
		case <-ctx.Done():
			return s.settle(s.outcome(OutcomeAborted, ""))

		case <-s.ticker.Chan():
			s.remaining--
			s.emit(Event{Type: EventCountdown, Countdown: s.remaining})
			if s.remaining > 0 {
				continue
			}
			// A failure that is already queued beats the timeout.
			if out, ok := s.drain(&updates); ok {
				return s.settle(out)
			}
			return s.settle(s.outcome(OutcomeFallback, ReasonVerificationTimeout))

		case <-s.retry.Chan():
			if s.checking {
				s.retryDue = true
				continue
			}
			if !s.order.PaymentStatus.IsTerminal() {
				s.startVerify(verifyCtx)
			}

		case reply := <-s.checks:
			reply <- s.startVerify(verifyCtx)

		case res := <-s.results:
			if out, ok := s.applyVerify(res); ok {
				return s.settle(out)
			}

		case update, ok := <-updates:
			if !ok {
				s.logger.Debug("realtime feed closed")
				updates = nil
				continue
			}
			if out, ok := s.applyUpdate(update); ok {
				return s.settle(out)
			}
		}
	}
}

// drain applies whatever verification result or push update is already
// waiting, without blocking.
func (s *Session) drain(updates *<-chan model.Order) (Outcome, bool) {
	for {
		select {
		case res := <-s.results:
			if out, ok := s.applyVerify(res); ok {
				return out, true
			}
		case update, ok := <-*updates:
			if !ok {
				*updates = nil
				continue
			}
			if out, ok := s.applyUpdate(update); ok {
				return out, true
			}
		default:
			return Outcome{}, false
		}
	}
}

func (s *Session) startVerify(ctx context.Context) bool {
	if s.checking || s.resolved {
		return false
	}
	s.checking = true
	go func() {
		order, err := s.opts.Verifier.Verify(ctx, s.orderID)
		s.results <- verifyResult{order: order, err: err}
	}()
	return true
}

func (s *Session) applyVerify(res verifyResult) (Outcome, bool) {
	s.checking = false
	defer s.rescheduleRetry()
	if res.err != nil {
		if !errors.Is(res.err, context.Canceled) {
			s.logger.Warn("payment verification failed", slog.String("error", res.err.Error()))
		}
		return Outcome{}, false
	}
	if res.order == nil {
		return Outcome{}, false
	}
	return s.merge(*res.order)
}

// rescheduleRetry re-arms a retry that fired during a slow check, so the
// retry still runs a full delay after that check returned.
func (s *Session) rescheduleRetry() {
	if !s.retryDue || s.order.PaymentStatus.IsTerminal() || s.retry == nil {
		return
	}
	s.retryDue = false
	s.retry.Reset(s.opts.RetryDelay)
}

func (s *Session) applyUpdate(update model.Order) (Outcome, bool) {
	if update.ID != "" && update.ID != s.orderID {
		return Outcome{}, false
	}
	return s.merge(update)
}

// merge overlays an incoming row onto the local snapshot. The status only
// moves forward.
func (s *Session) merge(update model.Order) (Outcome, bool) {
	current := s.order.PaymentStatus
	next := s.order.Overlay(update)
	if !current.CanTransitionTo(next.PaymentStatus) {
		next.PaymentStatus = current
	}
	s.order = next
	s.emitOrder()
	return s.resolve()
}

func (s *Session) resolve() (Outcome, bool) {
	switch s.order.PaymentStatus {
	case model.PaymentStatusCompleted:
		return s.outcome(OutcomeSuccess, ""), true
	case model.PaymentStatusFailed:
		return s.outcome(OutcomeFailure, ReasonPaymentFailed), true
	case model.PaymentStatusNotConfigured:
		return s.outcome(OutcomeNotConfigured, ""), true
	}
	return Outcome{}, false
}

// settle tears the watchers down before the outcome becomes visible.
func (s *Session) settle(out Outcome) Outcome {
	s.teardown()
	return s.finish(out)
}

func (s *Session) teardown() {
	if s.tornDown {
		return
	}
	s.tornDown = true
	s.active = false
	s.resolved = true
	s.checking = true

	if s.ticker != nil {
		s.ticker.Stop()
	}
	if s.retry != nil {
		s.retry.Stop()
	}
	if s.sub != nil {
		s.sub.Unsubscribe()
	}
	if s.cancelVerify != nil {
		s.cancelVerify()
	}
}

func (s *Session) finish(out Outcome) Outcome {
	s.resolved = true
	if out.Kind != OutcomeAborted {
		s.unstash()
	}
	if target := out.Target(); target != "" && s.opts.Navigator != nil {
		s.opts.Navigator.Navigate(target)
	}
	s.logger.Info("confirmation finished", slog.String("outcome", string(out.Kind)))
	s.emit(Event{Type: EventState, State: out.state()})
	s.emit(Event{Type: EventOutcome, Outcome: &out})
	return out
}

func (s *Session) outcome(kind OutcomeKind, reason string) Outcome {
	out := Outcome{Kind: kind, OrderID: s.orderID, Reason: reason}
	if s.order.ID != "" {
		snapshot := s.order
		out.Order = &snapshot
	}
	return out
}

func (s *Session) stash() {
	if s.opts.Store == nil {
		return
	}
	if err := s.opts.Store.Set(PendingOrderKey, s.orderID); err != nil {
		s.logger.Warn("store pending order failed", slog.String("error", err.Error()))
	}
}

func (s *Session) unstash() {
	if s.opts.Store == nil {
		return
	}
	if err := s.opts.Store.Remove(PendingOrderKey); err != nil {
		s.logger.Warn("clear pending order failed", slog.String("error", err.Error()))
	}
}

func (s *Session) emitOrder() {
	snapshot := s.order
	s.emit(Event{Type: EventOrder, Order: &snapshot})
}

func (s *Session) emit(e Event) {
	if s.opts.OnEvent != nil {
		s.opts.OnEvent(e)
	}
}
