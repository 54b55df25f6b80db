// Package order owns the immutable order record and the checkout transition
// that produces it from a basket.
package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/virginia-wolfi/chocolate-shop/internal/domain/pricing"
)

var (
	// ErrEmptyBasket is returned when checkout is attempted with no basket items.
	ErrEmptyBasket = errors.New("nothing to check out: basket is empty")
	// ErrNotFound is returned when a requested order does not exist.
	ErrNotFound = errors.New("order not found")
	// ErrInvalidTransition is returned for a status change that is not the
	// immediate next step in the fulfillment sequence.
	ErrInvalidTransition = errors.New("invalid order status transition")
)

// Status is the fulfillment state of an order. Transitions are forward-only
// and step by step: Created → Paid → OnWay → Delivered.
type Status int16

const (
	StatusCreated Status = iota
	StatusPaid
	StatusOnWay
	StatusDelivered
)

var statusNames = map[Status]string{
	StatusCreated:   "created",
	StatusPaid:      "paid",
	StatusOnWay:     "on_way",
	StatusDelivered: "delivered",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

// CanTransitionTo reports whether next is the immediate successor of s.
// No backwards moves and no skips.
func (s Status) CanTransitionTo(next Status) bool {
	return next.Valid() && next == s+1
}

// ParseStatus converts the wire name of a status back to its value.
func ParseStatus(name string) (Status, error) {
	for s, n := range statusNames {
		if n == name {
			return s, nil
		}
	}
	return 0, errors.Errorf("unknown order status %q", name)
}

// Contact holds the customer contact fields captured at checkout.
type Contact struct {
	FullName    string
	PhoneNumber string
	Address     string
}

// Order is the persisted snapshot of a completed checkout. It is created once
// and never recomputed; only the status changes afterwards.
type Order struct {
	ID     string
	UserID int64
	Contact
	// BasketHistory freezes the priced basket contents at checkout time.
	BasketHistory []pricing.SnapshotLine
	// TotalSum is the final, already-discounted grand total.
	TotalSum decimal.Decimal
	Status   Status
	// PromoCodeID references the consumed promo code, if any. Deleting the
	// code later clears the reference instead of cascading.
	PromoCodeID *int64
	CreatedAt   time.Time
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	ListByUser(ctx context.Context, userID int64) ([]Order, error)
	// UpdateStatus moves the order from one status to another. It fails with
	// ErrInvalidTransition when the stored status no longer equals from, so
	// concurrent fulfillment actions cannot skip or repeat a step.
	UpdateStatus(ctx context.Context, id string, from, to Status) error
}
