package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	domainErrors "github.com/polkiloo/servenow/internal/domain/errors"
	"github.com/polkiloo/servenow/internal/domain/model"
	"github.com/polkiloo/servenow/internal/domain/repository"
)

// NotifyChannel is the LISTEN/NOTIFY channel carrying updated order rows.
const NotifyChannel = "order_updates"

type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

var newPgxPool = func(ctx context.Context, cfg *pgxpool.Config) (pgxPool, error) {
	return pgxpool.NewWithConfig(ctx, cfg)
}

// Storage acts as repository facade backed by PostgreSQL.
type Storage struct {
	pool   pgxPool
	logger *slog.Logger
}

type orderRepository struct {
	storage *Storage
}

// New creates storage with schema initialization.
func New(ctx context.Context, dsn string, logger *slog.Logger) (*Storage, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}

	pool, err := newPgxPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	storage := &Storage{pool: pool, logger: logger}
	if err := storage.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return storage, nil
}

// Close releases database resources.
func (s *Storage) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Orders returns the order repository.
func (s *Storage) Orders() repository.OrderRepository {
	return &orderRepository{storage: s}
}

func (s *Storage) initSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS restaurants (
            id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            name TEXT NOT NULL,
            phone TEXT NOT NULL DEFAULT ''
        )`,
		`CREATE TABLE IF NOT EXISTS orders (
            id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            restaurant_id UUID REFERENCES restaurants(id),
            customer_name TEXT NOT NULL DEFAULT '',
            customer_phone TEXT NOT NULL DEFAULT '',
            table_number TEXT NOT NULL DEFAULT '',
            items JSONB NOT NULL DEFAULT '[]',
            total_amount NUMERIC(12, 2) NOT NULL DEFAULT 0,
            payment_status TEXT NOT NULL DEFAULT 'pending',
            payment_session_id TEXT,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`,
		`CREATE INDEX IF NOT EXISTS idx_orders_unsettled ON orders(updated_at)
            WHERE payment_status IN ('pending', 'verifying')`,
		// items are dropped from the payload: NOTIFY caps payloads at 8000 bytes.
		`CREATE OR REPLACE FUNCTION notify_order_update() RETURNS trigger AS $$
        BEGIN
            PERFORM pg_notify('` + NotifyChannel + `', (to_jsonb(NEW) - 'items')::text);
            RETURN NEW;
        END;
        $$ LANGUAGE plpgsql`,
		`DROP TRIGGER IF EXISTS orders_notify_update ON orders`,
		`CREATE TRIGGER orders_notify_update AFTER UPDATE ON orders
            FOR EACH ROW EXECUTE FUNCTION notify_order_update()`,
	}

	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}

	return nil
}

const orderColumns = `o.id::text, COALESCE(o.restaurant_id::text, ''), o.customer_name, o.customer_phone,
                   o.table_number, o.items, o.total_amount::float8, o.payment_status,
                   COALESCE(o.payment_session_id, ''), o.created_at, o.updated_at, r.name, r.phone
                   FROM orders o LEFT JOIN restaurants r ON r.id = o.restaurant_id`

type itemRow struct {
	DishID   string  `json:"dish_id"`
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

func scanOrder(row pgx.Row) (*model.Order, error) {
	var (
		o               model.Order
		items           []byte
		status          string
		restaurantName  *string
		restaurantPhone *string
	)
	err := row.Scan(&o.ID, &o.RestaurantID, &o.CustomerName, &o.CustomerPhone, &o.TableNumber, &items,
		&o.TotalAmount, &status, &o.PaymentSessionID, &o.CreatedAt, &o.UpdatedAt, &restaurantName, &restaurantPhone)
	if err != nil {
		return nil, err
	}

	o.PaymentStatus = model.NormalizePaymentStatus(status)
	if restaurantName != nil {
		o.Restaurant = &model.Restaurant{ID: o.RestaurantID, Name: *restaurantName}
		if restaurantPhone != nil {
			o.Restaurant.Phone = *restaurantPhone
		}
	}

	if len(items) > 0 {
		var rows []itemRow
		if err := json.Unmarshal(items, &rows); err != nil {
			return nil, fmt.Errorf("decode items: %w", err)
		}
		o.Items = make([]model.OrderItem, 0, len(rows))
		for _, it := range rows {
			o.Items = append(o.Items, model.OrderItem{DishID: it.DishID, Name: it.Name, Quantity: it.Quantity, Price: it.Price})
		}
	}
	return &o, nil
}

// --- OrderRepository implementation ---

func (r *orderRepository) GetByID(ctx context.Context, id string) (*model.Order, error) {
	const query = `SELECT ` + orderColumns + ` WHERE o.id = $1`
	order, err := scanOrder(r.storage.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrNotFound
		}
		return nil, err
	}
	return order, nil
}

func (r *orderRepository) UpdatePaymentStatus(ctx context.Context, id string, status model.PaymentStatus) (*model.Order, error) {
	err := r.storage.WithinTransaction(ctx, func(tx pgx.Tx) error {
		const lockQuery = `SELECT payment_status FROM orders WHERE id = $1 FOR UPDATE`
		var raw string
		if err := tx.QueryRow(ctx, lockQuery, id).Scan(&raw); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domainErrors.ErrNotFound
			}
			return err
		}

		current := model.NormalizePaymentStatus(raw)
		if current == status {
			return nil
		}
		if !current.CanTransitionTo(status) {
			if current.IsTerminal() {
				return domainErrors.ErrPaymentStatusFinal
			}
			r.storage.logger.Debug("ignoring payment status regression",
				slog.String("order", id), slog.String("from", string(current)), slog.String("to", string(status)))
			return nil
		}

		const updateQuery = `UPDATE orders SET payment_status = $1, updated_at = NOW() WHERE id = $2`
		_, err := tx.Exec(ctx, updateQuery, status, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *orderRepository) ClaimStale(ctx context.Context, updatedBefore time.Time, limit int) ([]model.Order, error) {
	const selectQuery = `SELECT ` + orderColumns + `
                         WHERE o.payment_status IN ('pending', 'verifying') AND o.updated_at < $1
                         ORDER BY o.updated_at
                         LIMIT $2
                         FOR UPDATE OF o SKIP LOCKED`

	var orders []model.Order
	err := r.storage.WithinTransaction(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, selectQuery, updatedBefore, limit)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			o, err := scanOrder(rows)
			if err != nil {
				return err
			}
			orders = append(orders, *o)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		if len(orders) == 0 {
			return nil
		}

		ids := make([]string, 0, len(orders))
		for _, o := range orders {
			ids = append(ids, o.ID)
		}
		_, err = tx.Exec(ctx, `UPDATE orders SET updated_at = NOW() WHERE id = ANY($1::uuid[])`, ids)
		return err
	})
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// WithinTransaction executes function inside transaction boundary.
func (s *Storage) WithinTransaction(ctx context.Context, fn func(pgx.Tx) error) (err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	err = fn(tx)
	return err
}

// HealthCheck verifies database connectivity.
func (s *Storage) HealthCheck(ctx context.Context) error {
	if s.pool == nil {
		return fmt.Errorf("storage is not connected")
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.pool.Ping(ctx)
}
