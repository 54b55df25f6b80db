package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/virginia-wolfi/chocolate-shop/internal/domain/order"
	"github.com/virginia-wolfi/chocolate-shop/internal/domain/pricing"
)

const (
	createOrderSQL = `INSERT INTO orders
		(id, user_id, full_name, phone_number, address, basket_history, total_sum, status, promo_code_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	getOrderByIDSQL = `SELECT id, user_id, full_name, phone_number, address,
		basket_history, total_sum, status, promo_code_id, created_at
		FROM orders WHERE id = $1`

	listOrdersByUserSQL = `SELECT id, user_id, full_name, phone_number, address,
		basket_history, total_sum, status, promo_code_id, created_at
		FROM orders WHERE user_id = $1 ORDER BY created_at DESC`

	// The WHERE status = $2 clause is the forward-only guard under
	// concurrency: a lost race affects zero rows instead of skipping a step.
	updateOrderStatusSQL = `UPDATE orders SET status = $3 WHERE id = $1 AND status = $2`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	db querier
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(db querier) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create persists a new order. The basket history snapshot is serialized to
// JSON for storage in the JSONB column.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	history, err := json.Marshal(o.BasketHistory)
	if err != nil {
		return fmt.Errorf("marshaling basket history: %w", err)
	}

	_, err = r.db.Exec(ctx, createOrderSQL,
		o.ID, o.UserID, o.FullName, o.PhoneNumber, o.Address,
		history, o.TotalSum, int16(o.Status), o.PromoCodeID,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}

	return nil
}

// GetByID returns a single order, or order.ErrNotFound when it does not exist.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.db.Query(ctx, getOrderByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	return &o, nil
}

// ListByUser returns the user's orders, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID int64) ([]order.Order, error) {
	rows, err := r.db.Query(ctx, listOrdersByUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing orders for user %d: %w", userID, err)
	}

	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("listing orders for user %d: %w", userID, err)
	}
	return orders, nil
}

// UpdateStatus performs a compare-and-set status move. Zero affected rows
// means the stored status changed underneath the caller.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, from, to order.Status) error {
	tag, err := r.db.Exec(ctx, updateOrderStatusSQL, id, int16(from), int16(to))
	if err != nil {
		return fmt.Errorf("updating status of order %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrInvalidTransition
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o       order.Order
		history []byte
		status  int16
	)
	err := row.Scan(
		&o.ID, &o.UserID, &o.FullName, &o.PhoneNumber, &o.Address,
		&history, &o.TotalSum, &status, &o.PromoCodeID, &o.CreatedAt,
	)
	if err != nil {
		return o, err
	}

	o.Status = order.Status(status)
	if err := json.Unmarshal(history, &o.BasketHistory); err != nil {
		return o, fmt.Errorf("unmarshaling basket history of order %q: %w", o.ID, err)
	}
	if o.BasketHistory == nil {
		o.BasketHistory = []pricing.SnapshotLine{}
	}
	return o, nil
}
