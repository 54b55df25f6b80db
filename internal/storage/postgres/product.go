package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/virginia-wolfi/chocolate-shop/internal/domain/product"
)

const (
	listProductsSQL = `SELECT id, name, slug, description, ingredients, price, discount_price
		FROM products ORDER BY slug`

	getProductByIDSQL = `SELECT id, name, slug, description, ingredients, price, discount_price
		FROM products WHERE id = $1`

	getProductsByIDsSQL = `SELECT id, name, slug, description, ingredients, price, discount_price
		FROM products WHERE id = ANY($1)`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	db querier
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(db querier) *ProductRepository {
	return &ProductRepository{db: db}
}

// List returns the whole catalog ordered by slug.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.db.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}

	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return products, nil
}

// GetByID returns a single product, or product.ErrNotFound when it does not exist.
func (r *ProductRepository) GetByID(ctx context.Context, id int64) (*product.Product, error) {
	rows, err := r.db.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %d: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %d: %w", id, err)
	}
	return &p, nil
}

// GetByIDs returns the products with the given IDs in one batch. Missing IDs
// are not an error here; callers detect them by comparing lengths.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []int64) ([]product.Product, error) {
	rows, err := r.db.Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}

	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	return products, nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var (
		p        product.Product
		discount decimal.NullDecimal
	)
	err := row.Scan(&p.ID, &p.Name, &p.Slug, &p.Description, &p.Ingredients, &p.Price, &discount)
	if discount.Valid {
		d := discount.Decimal
		p.DiscountPrice = &d
	}
	return p, err
}
