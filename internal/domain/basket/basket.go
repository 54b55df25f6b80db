// Package basket holds the mutable per-user collection of products awaiting
// checkout. Items are created lazily on first add and the quantity is
// incremented on repeat adds; the whole basket is cleared as a side effect of
// a successful checkout.
package basket

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

var (
	// ErrItemNotFound is returned when the user has no basket item for the
	// given product.
	ErrItemNotFound = errors.New("basket item not found")
	// ErrNegativeQuantity is returned for quantity updates below zero.
	// A quantity of zero is valid: the item stays present in the basket.
	ErrNegativeQuantity = errors.New("quantity must not be negative")
)

// Item is one (user, product) pair in a basket. The pair is unique per user.
type Item struct {
	ID        int64
	UserID    int64
	ProductID int64
	Quantity  int
	CreatedAt time.Time
}

// Repository defines persistence operations for basket items.
type Repository interface {
	// ListByUser returns all basket items for the user, newest first.
	ListByUser(ctx context.Context, userID int64) ([]Item, error)
	// ListByUserForUpdate is ListByUser with row locks, so that concurrent
	// checkouts for the same user serialize on the basket rows. Outside a
	// transaction it behaves like ListByUser.
	ListByUserForUpdate(ctx context.Context, userID int64) ([]Item, error)
	// Add creates the (user, product) item with the given quantity, or
	// increments the existing item's quantity.
	Add(ctx context.Context, userID, productID int64, quantity int) error
	// SetQuantity overwrites the item's quantity. Zero is allowed.
	SetQuantity(ctx context.Context, userID, productID int64, quantity int) error
	// Remove deletes the item for the given product.
	Remove(ctx context.Context, userID, productID int64) error
	// Clear deletes every basket item belonging to the user.
	Clear(ctx context.Context, userID int64) error
}
