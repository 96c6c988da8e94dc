package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jonboulle/clockwork"

	"github.com/polkiloo/servenow/internal/metrics"
	"github.com/polkiloo/servenow/internal/storage/postgres"
)

const (
	minBackoff = 250 * time.Millisecond
	maxBackoff = 10 * time.Second
)

type notifyConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	WaitForNotification(ctx context.Context) (*pgconn.Notification, error)
	Close(ctx context.Context) error
}

type connectFunc func(ctx context.Context) (notifyConn, error)

// Listener receives order row notifications on a dedicated connection and
// publishes them to the hub.
type Listener struct {
	connect connectFunc
	hub     *Hub
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *metrics.Metrics

	wg     sync.WaitGroup
	cancel context.CancelFunc
	mu     sync.Mutex
}

// NewListener builds a listener that dials dsn for every (re)connect.
func NewListener(dsn string, hub *Hub, logger *slog.Logger, m *metrics.Metrics) *Listener {
	return newListener(func(ctx context.Context) (notifyConn, error) {
		conn, err := pgx.Connect(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}, hub, clockwork.NewRealClock(), logger, m)
}

func newListener(connect connectFunc, hub *Hub, clock clockwork.Clock, logger *slog.Logger, m *metrics.Metrics) *Listener {
	return &Listener{
		connect: connect,
		hub:     hub,
		clock:   clock,
		logger:  logger,
		metrics: m,
	}
}

// Start launches the listen loop.
func (l *Listener) Start(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel

	l.wg.Add(1)
	go l.run(runCtx)
}

// Stop cancels the loop and waits for it to exit.
func (l *Listener) Stop() {
	l.mu.Lock()
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	l.mu.Unlock()

	l.wg.Wait()
}

func (l *Listener) run(ctx context.Context) {
	defer l.wg.Done()

	backoff := minBackoff
	for {
		err := l.listen(ctx, &backoff)
		if ctx.Err() != nil {
			return
		}
		l.logger.Warn("order feed interrupted",
			slog.String("error", err.Error()),
			slog.Duration("retry_in", backoff),
		)

		select {
		case <-ctx.Done():
			return
		case <-l.clock.After(backoff):
		}
		backoff = nextBackoff(backoff)
	}
}

func (l *Listener) listen(ctx context.Context, backoff *time.Duration) error {
	conn, err := l.connect(ctx)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer func() {
		_ = conn.Close(context.WithoutCancel(ctx))
	}()

	if _, err := conn.Exec(ctx, "LISTEN "+postgres.NotifyChannel); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	*backoff = minBackoff
	l.logger.Info("listening for order updates", slog.String("channel", postgres.NotifyChannel))

	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}
		l.handle(notification.Payload)
	}
}

func (l *Listener) handle(payload string) {
	l.metrics.FeedNotification()
	order, err := DecodeRow([]byte(payload))
	if err != nil {
		l.logger.Warn("skip malformed order notification", slog.String("error", err.Error()))
		return
	}
	l.hub.Publish(order)
}

func nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}
