package confirmation

import (
	"context"
	"sync"

	"github.com/polkiloo/servenow/internal/domain/model"
)

// PendingOrderKey is the Store key holding the order id being watched.
const PendingOrderKey = "pending_order_id"

// OrderSource loads orders and performs best-effort status rewrites.
type OrderSource interface {
	FetchOrder(ctx context.Context, id string) (*model.Order, error)
	RewriteStatus(ctx context.Context, id string, status model.PaymentStatus) error
}

// Verifier asks the payment authority for the current state of an order.
type Verifier interface {
	Verify(ctx context.Context, id string) (*model.Order, error)
}

// Subscription delivers row updates for a single order.
// Unsubscribe must be safe to call more than once.
type Subscription interface {
	Updates() <-chan model.Order
	Unsubscribe()
}

// Feed opens push subscriptions by order id.
type Feed interface {
	Subscribe(ctx context.Context, id string) (Subscription, error)
}

// Navigator moves the viewer to another route.
type Navigator interface {
	Navigate(target string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(target string)

// Navigate calls f(target).
func (f NavigatorFunc) Navigate(target string) { f(target) }

// Store is a small key-value persistence port.
type Store interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Remove(key string) error
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (m *MemoryStore) Get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryStore) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemoryStore) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}
