package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item available for purchase.
type Product struct {
	ID          int64
	Name        string
	Slug        string
	Description string
	Ingredients string
	Price       decimal.Decimal
	// DiscountPrice, when set, replaces Price in all basket math.
	DiscountPrice *decimal.Decimal
}

// EffectivePrice returns the discount price when one is set, otherwise the
// base price. Basket math never uses the base price of a discounted product.
func (p Product) EffectivePrice() decimal.Decimal {
	if p.DiscountPrice != nil {
		return *p.DiscountPrice
	}
	return p.Price
}

// Discounted reports whether the product carries its own discount price.
// Promo codes never stack on top of a product discount.
func (p Product) Discounted() bool {
	return p.DiscountPrice != nil
}

// Repository defines read operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id int64) (*Product, error)
	GetByIDs(ctx context.Context, ids []int64) ([]Product, error)
}
