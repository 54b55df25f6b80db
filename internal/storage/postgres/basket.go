package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/virginia-wolfi/chocolate-shop/internal/domain/basket"
)

const (
	listBasketSQL = `SELECT id, user_id, product_id, quantity, created_at
		FROM basket_items WHERE user_id = $1 ORDER BY created_at DESC, id DESC`

	// FOR UPDATE serializes concurrent checkouts by the same user on the
	// basket rows themselves.
	listBasketForUpdateSQL = `SELECT id, user_id, product_id, quantity, created_at
		FROM basket_items WHERE user_id = $1 ORDER BY created_at DESC, id DESC FOR UPDATE`

	addBasketItemSQL = `INSERT INTO basket_items (user_id, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET quantity = basket_items.quantity + EXCLUDED.quantity`

	setBasketQuantitySQL = `UPDATE basket_items SET quantity = $3
		WHERE user_id = $1 AND product_id = $2`

	removeBasketItemSQL = `DELETE FROM basket_items WHERE user_id = $1 AND product_id = $2`

	clearBasketSQL = `DELETE FROM basket_items WHERE user_id = $1`
)

var _ basket.Repository = (*BasketRepository)(nil)

// BasketRepository implements basket.Repository backed by PostgreSQL.
type BasketRepository struct {
	db querier
}

// NewBasketRepository returns a BasketRepository that uses the given pool.
func NewBasketRepository(db querier) *BasketRepository {
	return &BasketRepository{db: db}
}

// ListByUser returns the user's basket items, newest first.
func (r *BasketRepository) ListByUser(ctx context.Context, userID int64) ([]basket.Item, error) {
	return r.list(ctx, listBasketSQL, userID)
}

// ListByUserForUpdate returns the user's basket items with row locks held for
// the remainder of the surrounding transaction.
func (r *BasketRepository) ListByUserForUpdate(ctx context.Context, userID int64) ([]basket.Item, error) {
	return r.list(ctx, listBasketForUpdateSQL, userID)
}

func (r *BasketRepository) list(ctx context.Context, sql string, userID int64) ([]basket.Item, error) {
	rows, err := r.db.Query(ctx, sql, userID)
	if err != nil {
		return nil, fmt.Errorf("listing basket for user %d: %w", userID, err)
	}

	items, err := pgx.CollectRows(rows, scanBasketItem)
	if err != nil {
		return nil, fmt.Errorf("listing basket for user %d: %w", userID, err)
	}
	return items, nil
}

// Add lazily creates the (user, product) item or increments its quantity.
func (r *BasketRepository) Add(ctx context.Context, userID, productID int64, quantity int) error {
	if quantity < 0 {
		return basket.ErrNegativeQuantity
	}
	_, err := r.db.Exec(ctx, addBasketItemSQL, userID, productID, quantity)
	if err != nil {
		return fmt.Errorf("adding product %d to basket of user %d: %w", productID, userID, err)
	}
	return nil
}

// SetQuantity overwrites the item's quantity; zero keeps the item present.
func (r *BasketRepository) SetQuantity(ctx context.Context, userID, productID int64, quantity int) error {
	if quantity < 0 {
		return basket.ErrNegativeQuantity
	}
	tag, err := r.db.Exec(ctx, setBasketQuantitySQL, userID, productID, quantity)
	if err != nil {
		return fmt.Errorf("updating basket quantity for user %d: %w", userID, err)
	}
	if tag.RowsAffected() == 0 {
		return basket.ErrItemNotFound
	}
	return nil
}

// Remove deletes the item for the given product.
func (r *BasketRepository) Remove(ctx context.Context, userID, productID int64) error {
	tag, err := r.db.Exec(ctx, removeBasketItemSQL, userID, productID)
	if err != nil {
		return fmt.Errorf("removing product %d from basket of user %d: %w", productID, userID, err)
	}
	if tag.RowsAffected() == 0 {
		return basket.ErrItemNotFound
	}
	return nil
}

// Clear deletes every basket item belonging to the user.
func (r *BasketRepository) Clear(ctx context.Context, userID int64) error {
	_, err := r.db.Exec(ctx, clearBasketSQL, userID)
	if err != nil {
		return fmt.Errorf("clearing basket for user %d: %w", userID, err)
	}
	return nil
}

func scanBasketItem(row pgx.CollectableRow) (basket.Item, error) {
	var item basket.Item
	err := row.Scan(&item.ID, &item.UserID, &item.ProductID, &item.Quantity, &item.CreatedAt)
	return item, err
}
