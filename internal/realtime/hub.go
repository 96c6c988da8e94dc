package realtime

import (
	"context"
	"log/slog"
	"sync"

	"github.com/polkiloo/servenow/internal/confirmation"
	"github.com/polkiloo/servenow/internal/domain/model"
	"github.com/polkiloo/servenow/internal/metrics"
)

const defaultBuffer = 4

// Hub fans order updates out to per-order subscribers.
type Hub struct {
	mu      sync.Mutex
	subs    map[string]map[*subscription]struct{}
	buffer  int
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewHub constructs an empty hub.
func NewHub(logger *slog.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		subs:    make(map[string]map[*subscription]struct{}),
		buffer:  defaultBuffer,
		logger:  logger,
		metrics: m,
	}
}

// Subscribe registers interest in updates for orderID. The subscription ends
// when Unsubscribe is called or ctx is done.
func (h *Hub) Subscribe(ctx context.Context, orderID string) (confirmation.Subscription, error) {
	sub := &subscription{
		hub:     h,
		orderID: orderID,
		ch:      make(chan model.Order, h.buffer),
		closed:  make(chan struct{}),
	}

	h.mu.Lock()
	set, ok := h.subs[orderID]
	if !ok {
		set = make(map[*subscription]struct{})
		h.subs[orderID] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()
	h.metrics.SubscriberAdded()

	go func() {
		select {
		case <-ctx.Done():
			sub.Unsubscribe()
		case <-sub.closed:
		}
	}()
	return sub, nil
}

// Publish delivers order to every subscriber of order.ID without blocking.
// A full subscriber loses its oldest pending update.
func (h *Hub) Publish(order model.Order) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subs[order.ID] {
		select {
		case sub.ch <- order:
			continue
		default:
		}
		select {
		case <-sub.ch:
			h.metrics.FeedDropped()
			h.logger.Debug("dropped stale order update", slog.String("order", order.ID))
		default:
		}
		select {
		case sub.ch <- order:
		default:
		}
	}
}

// subscribers returns the number of open subscriptions for orderID.
func (h *Hub) subscribers(orderID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[orderID])
}

func (h *Hub) remove(sub *subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if set, ok := h.subs[sub.orderID]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(h.subs, sub.orderID)
		}
	}
	close(sub.ch)
}

type subscription struct {
	hub     *Hub
	orderID string
	ch      chan model.Order
	once    sync.Once
	closed  chan struct{}
}

func (s *subscription) Updates() <-chan model.Order { return s.ch }

func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		s.hub.remove(s)
		close(s.closed)
		s.hub.metrics.SubscriberRemoved()
	})
}
