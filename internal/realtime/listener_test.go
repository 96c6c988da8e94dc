package realtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polkiloo/servenow/internal/domain/model"
)

type fakeConn struct {
	notes   chan *pgconn.Notification
	execErr error

	mu     sync.Mutex
	execs  []string
	closed bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{notes: make(chan *pgconn.Notification, 4)}
}

func (c *fakeConn) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.execs = append(c.execs, sql)
	return pgconn.CommandTag{}, c.execErr
}

func (c *fakeConn) WaitForNotification(ctx context.Context) (*pgconn.Notification, error) {
	select {
	case n, ok := <-c.notes:
		if !ok {
			return nil, errors.New("connection lost")
		}
		return n, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *fakeConn) Close(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

const rowJSON = `{"id":"5d1f0e2a-9b7c-4a31-8e6d-2c4b1a0f9e87","restaurant_id":"r1","customer_name":"Asha",` +
	`"customer_phone":"+91 98","table_number":"7","total_amount":240.5,"payment_status":"completed",` +
	`"payment_session_id":null,"created_at":"2025-03-01T10:00:00.123456+00:00","updated_at":"2025-03-01T10:00:05+00:00"}`

func TestDecodeRow(t *testing.T) {
	order, err := DecodeRow([]byte(rowJSON))
	require.NoError(t, err)
	assert.Equal(t, orderID, order.ID)
	assert.Equal(t, "r1", order.RestaurantID)
	assert.Equal(t, 240.5, order.TotalAmount)
	assert.Equal(t, model.PaymentStatusCompleted, order.PaymentStatus)
	assert.Empty(t, order.PaymentSessionID)
	assert.Nil(t, order.Restaurant)
	assert.Equal(t, 2025, order.CreatedAt.Year())

	order, err = DecodeRow([]byte(`{"id":"x","payment_status":"refund_requested"}`))
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPending, order.PaymentStatus)

	_, err = DecodeRow([]byte(`{"payment_status":"failed"}`))
	assert.Error(t, err)
	_, err = DecodeRow([]byte(`not json`))
	assert.Error(t, err)
}

func TestNextBackoff(t *testing.T) {
	assert.Equal(t, 500*time.Millisecond, nextBackoff(minBackoff))
	assert.Equal(t, maxBackoff, nextBackoff(8*time.Second))
	assert.Equal(t, maxBackoff, nextBackoff(maxBackoff))
}

func TestListenerPublishesNotifications(t *testing.T) {
	hub := NewHub(discardLogger(), nil)
	conn := newFakeConn()
	l := newListener(func(context.Context) (notifyConn, error) { return conn, nil },
		hub, clockwork.NewFakeClock(), discardLogger(), nil)

	sub, err := hub.Subscribe(context.Background(), orderID)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	l.Start(context.Background())
	conn.notes <- &pgconn.Notification{Channel: "order_updates", Payload: `{"broken"`}
	conn.notes <- &pgconn.Notification{Channel: "order_updates", Payload: rowJSON}

	select {
	case got := <-sub.Updates():
		assert.Equal(t, model.PaymentStatusCompleted, got.PaymentStatus)
	case <-time.After(time.Second):
		t.Fatal("no update published")
	}

	l.Stop()
	assert.True(t, conn.isClosed())
	conn.mu.Lock()
	assert.Equal(t, []string{"LISTEN order_updates"}, conn.execs)
	conn.mu.Unlock()
}

func TestListenerReconnectsWithBackoff(t *testing.T) {
	hub := NewHub(discardLogger(), nil)
	clock := clockwork.NewFakeClock()
	conn := newFakeConn()

	attempts := make(chan int, 8)
	var mu sync.Mutex
	calls := 0
	l := newListener(func(context.Context) (notifyConn, error) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		attempts <- n
		if n == 1 {
			return nil, errors.New("connection refused")
		}
		return conn, nil
	}, hub, clock, discardLogger(), nil)

	sub, err := hub.Subscribe(context.Background(), orderID)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	l.Start(context.Background())
	defer l.Stop()

	assert.Equal(t, 1, <-attempts)
	require.NoError(t, clock.BlockUntilContext(context.Background(), 1))
	clock.Advance(minBackoff)
	assert.Equal(t, 2, <-attempts)

	conn.notes <- &pgconn.Notification{Payload: rowJSON}
	select {
	case got := <-sub.Updates():
		assert.Equal(t, orderID, got.ID)
	case <-time.After(time.Second):
		t.Fatal("no update after reconnect")
	}
}

func TestListenerStopsDuringBackoff(t *testing.T) {
	clock := clockwork.NewFakeClock()
	l := newListener(func(context.Context) (notifyConn, error) {
		return nil, errors.New("down")
	}, NewHub(discardLogger(), nil), clock, discardLogger(), nil)

	l.Start(context.Background())
	require.NoError(t, clock.BlockUntilContext(context.Background(), 1))

	done := make(chan struct{})
	go func() {
		l.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("listener did not stop")
	}
}

func TestListenerExecFailureRetries(t *testing.T) {
	clock := clockwork.NewFakeClock()
	conn := newFakeConn()
	conn.execErr = errors.New("permission denied")
	l := newListener(func(context.Context) (notifyConn, error) { return conn, nil },
		NewHub(discardLogger(), nil), clock, discardLogger(), nil)

	l.Start(context.Background())
	require.NoError(t, clock.BlockUntilContext(context.Background(), 1))
	assert.True(t, conn.isClosed())
	l.Stop()
}
