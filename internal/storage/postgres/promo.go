package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/virginia-wolfi/chocolate-shop/internal/domain/promo"
)

const (
	getPromoByCodeSQL = `SELECT id, code, discount, valid_from, valid_to
		FROM promo_codes WHERE UPPER(code) = UPPER($1)`

	promoUsageExistsSQL = `SELECT EXISTS (
		SELECT 1 FROM used_promo_codes WHERE user_id = $1 AND promo_code_id = $2)`

	recordPromoUsageSQL = `INSERT INTO used_promo_codes (user_id, promo_code_id)
		VALUES ($1, $2)`
)

var (
	_ promo.Repository      = (*PromoRepository)(nil)
	_ promo.UsageRepository = (*PromoUsageRepository)(nil)
)

// PromoRepository implements promo.Repository backed by PostgreSQL.
type PromoRepository struct {
	db querier
}

// NewPromoRepository returns a PromoRepository that uses the given pool.
func NewPromoRepository(db querier) *PromoRepository {
	return &PromoRepository{db: db}
}

// FindByCode looks up a promo code case-insensitively.
// Returns promo.ErrInvalidCode when no matching code exists.
func (r *PromoRepository) FindByCode(ctx context.Context, code string) (*promo.Code, error) {
	rows, err := r.db.Query(ctx, getPromoByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding promo code %q: %w", code, err)
	}

	pc, err := pgx.CollectExactlyOneRow(rows, scanPromoCode)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, promo.ErrInvalidCode
		}
		return nil, fmt.Errorf("finding promo code %q: %w", code, err)
	}
	return &pc, nil
}

func scanPromoCode(row pgx.CollectableRow) (promo.Code, error) {
	var pc promo.Code
	err := row.Scan(&pc.ID, &pc.Code, &pc.Discount, &pc.ValidFrom, &pc.ValidTo)
	return pc, err
}

// PromoUsageRepository implements the single-use ledger backed by PostgreSQL.
type PromoUsageRepository struct {
	db querier
}

// NewPromoUsageRepository returns a PromoUsageRepository that uses the given pool.
func NewPromoUsageRepository(db querier) *PromoUsageRepository {
	return &PromoUsageRepository{db: db}
}

// Exists reports whether the user has already consumed the promo code.
func (r *PromoUsageRepository) Exists(ctx context.Context, userID, promoID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, promoUsageExistsSQL, userID, promoID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking promo usage for user %d: %w", userID, err)
	}
	return exists, nil
}

// Record inserts the usage row. A violation of the (user_id, promo_code_id)
// unique constraint maps to promo.ErrAlreadyUsed so racing checkouts resolve
// to exactly one winner.
func (r *PromoUsageRepository) Record(ctx context.Context, userID, promoID int64) error {
	_, err := r.db.Exec(ctx, recordPromoUsageSQL, userID, promoID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return promo.ErrAlreadyUsed
		}
		return fmt.Errorf("recording promo usage for user %d: %w", userID, err)
	}
	return nil
}
