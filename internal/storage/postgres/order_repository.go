package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ovenworks/bakeshop/internal/domain"
)

type OrderRepository struct {
	pool *pgxpool.Pool
}

func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

func (r *OrderRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

// CreateOrder inserts the order and its items and returns the
// store-assigned id. Callers wrap it in WithTx so the order never
// becomes visible without its items.
func (r *OrderRepository) CreateOrder(ctx context.Context, order domain.Order) (int64, error) {
	const orderStmt = `
INSERT INTO orders (customer_name, customer_email, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $4)
RETURNING id`

	var id int64
	err := r.queryRow(ctx, orderStmt, order.CustomerName, order.CustomerEmail, order.Status, order.CreatedAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create order: %w", err)
	}

	const itemStmt = `
INSERT INTO order_items (order_id, product_id, quantity)
VALUES ($1, $2, $3)`

	for _, item := range order.Items {
		if _, err := r.exec(ctx, itemStmt, id, item.ProductID, item.Quantity); err != nil {
			return 0, fmt.Errorf("create order item: %w", err)
		}
	}
	return id, nil
}

func (r *OrderRepository) GetOrderStatus(ctx context.Context, orderID int64) (domain.OrderStatus, error) {
	const query = `SELECT status FROM orders WHERE id = $1`

	var status string
	err := r.queryRow(ctx, query, orderID).Scan(&status)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", domain.ErrOrderNotFound
		}
		return "", fmt.Errorf("get order status: %w", err)
	}
	return domain.OrderStatus(status), nil
}

// MarkProcessing advances a created order to processing. The status
// guard makes the write a no-op on redelivery: a processing or
// completed order is never touched.
func (r *OrderRepository) MarkProcessing(ctx context.Context, orderID int64) error {
	const stmt = `
UPDATE orders SET status = 'processing', updated_at = NOW()
WHERE id = $1 AND status = 'created'`

	if _, err := r.exec(ctx, stmt, orderID); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}
	return nil
}

// MarkCompleted advances an order to completed. Completed is terminal;
// the guard keeps a late redelivery from rewriting it.
func (r *OrderRepository) MarkCompleted(ctx context.Context, orderID int64) error {
	const stmt = `
UPDATE orders SET status = 'completed', updated_at = NOW()
WHERE id = $1 AND status IN ('created', 'processing')`

	if _, err := r.exec(ctx, stmt, orderID); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	return nil
}

// RecordFulfillment writes the fulfillment side-effect record exactly
// once per order. Returns false when a previous delivery already
// recorded it.
func (r *OrderRepository) RecordFulfillment(ctx context.Context, orderID int64, eventID string, at time.Time) (bool, error) {
	const stmt = `
INSERT INTO order_fulfillments (order_id, event_id, fulfilled_at)
VALUES ($1, $2, $3)
ON CONFLICT (order_id) DO NOTHING`

	tag, err := r.exec(ctx, stmt, orderID, eventID, at)
	if err != nil {
		return false, fmt.Errorf("record fulfillment: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *OrderRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.pool.Exec(ctx, sql, args...)
}

func (r *OrderRepository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.pool.QueryRow(ctx, sql, args...)
}
