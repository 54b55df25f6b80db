// Package promo implements time-windowed, single-use-per-user promotional
// discount codes. A code is a discount fraction in (0, 1) plus a validity
// window; consumption state lives in a separate ledger keyed by
// (user, promo code), unique at the storage layer.
package promo

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidCode is returned when no promo code with the given code exists.
	ErrInvalidCode = errors.New("invalid promo code")
	// ErrExpired is returned when the current time is outside the code's
	// [valid_from, valid_to] window.
	ErrExpired = errors.New("promo code expired or not yet valid")
	// ErrAlreadyUsed is returned when the user has already consumed the code.
	ErrAlreadyUsed = errors.New("promo code already used")
)

// IsValidationError reports whether err is one of the user-correctable promo
// failures: unknown code, outside the validity window, or already consumed.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidCode) ||
		errors.Is(err, ErrExpired) ||
		errors.Is(err, ErrAlreadyUsed)
}

// Code is a promotional discount token.
type Code struct {
	ID   int64
	Code string
	// Discount is the fraction of the unit price taken off, in [0.01, 0.99].
	Discount  decimal.Decimal
	ValidFrom time.Time
	ValidTo   time.Time
}

// Repository provides lookup of promo codes.
type Repository interface {
	// FindByCode returns the promo code with the given code string, or
	// ErrInvalidCode when none exists.
	FindByCode(ctx context.Context, code string) (*Code, error)
}

// UsageRepository is the single-use ledger.
type UsageRepository interface {
	// Exists reports whether the user has already consumed the promo code.
	Exists(ctx context.Context, userID, promoID int64) (bool, error)
	// Record inserts the (user, promo code) usage row. It returns
	// ErrAlreadyUsed when the pair already exists; the storage-level unique
	// constraint closes the race between concurrent checkouts.
	Record(ctx context.Context, userID, promoID int64) error
}
