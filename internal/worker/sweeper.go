package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/polkiloo/servenow/internal/adapter/cashfree"
	"github.com/polkiloo/servenow/internal/domain/model"
	"github.com/polkiloo/servenow/internal/metrics"
)

// SweepFacade exposes the subset of application functionality required by the sweeper.
type SweepFacade interface {
	StaleOrders(ctx context.Context, limit int) ([]model.Order, error)
	VerifyPayment(ctx context.Context, id string) (*model.Order, error)
}

// Sweeper periodically re-verifies orders that were left unsettled, for example
// when the customer closed the confirmation page before it resolved.
type Sweeper struct {
	facade       SweepFacade
	pollInterval time.Duration
	batchSize    int
	workers      int
	logger       *slog.Logger
	metrics      *metrics.Metrics

	jobs   chan model.Order
	wg     sync.WaitGroup
	cancel context.CancelFunc
	mu     sync.Mutex
}

// NewSweeper constructs the sweeper worker pool.
func NewSweeper(facade SweepFacade, pollInterval time.Duration, batchSize, workers int, logger *slog.Logger, m *metrics.Metrics) *Sweeper {
	if workers <= 0 {
		workers = 1
	}
	if batchSize <= 0 {
		batchSize = 1
	}
	return &Sweeper{
		facade:       facade,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		workers:      workers,
		logger:       logger,
		metrics:      m,
		jobs:         make(chan model.Order, batchSize),
	}
}

// Start launches background processing.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker(runCtx)
	}

	s.wg.Add(1)
	go s.dispatch(runCtx)
}

// Stop waits for all workers to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *Sweeper) dispatch(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.jobs)
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.fetchAndDispatch(ctx)
		}
	}
}

func (s *Sweeper) fetchAndDispatch(ctx context.Context) {
	orders, err := s.facade.StaleOrders(ctx, s.batchSize)
	if err != nil {
		s.logger.Error("fetch stale orders failed", slog.String("error", err.Error()))
		return
	}
	for _, order := range orders {
		select {
		case <-ctx.Done():
			return
		case s.jobs <- order:
		}
	}
}

func (s *Sweeper) worker(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case order, ok := <-s.jobs:
			if !ok {
				return
			}
			s.handleOrder(ctx, order)
		}
	}
}

func (s *Sweeper) handleOrder(ctx context.Context, order model.Order) {
	updated, err := s.facade.VerifyPayment(ctx, order.ID)
	if err != nil {
		var tooMany cashfree.TooManyRequestsError
		if errors.As(err, &tooMany) {
			s.metrics.OrderSwept("rate_limited")
			s.logger.Warn("gateway rate limited", slog.Duration("retry_after", tooMany.RetryAfter))
			select {
			case <-ctx.Done():
			case <-time.After(tooMany.RetryAfter):
			}
			return
		}
		s.metrics.OrderSwept("error")
		s.logger.Error("sweep verification failed", slog.String("order", order.ID), slog.String("error", err.Error()))
		return
	}

	s.metrics.OrderSwept(string(updated.PaymentStatus))
	if updated.PaymentStatus != order.PaymentStatus {
		s.logger.Info("swept order settled",
			slog.String("order", order.ID),
			slog.String("from", string(order.PaymentStatus)),
			slog.String("to", string(updated.PaymentStatus)),
		)
	}
}
