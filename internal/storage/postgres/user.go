package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/virginia-wolfi/chocolate-shop/internal/domain/user"
)

const getUserByTokenHashSQL = `SELECT id, email, token_hash FROM users WHERE token_hash = $1`

var _ user.Repository = (*UserRepository)(nil)

// UserRepository resolves API tokens to shop accounts.
type UserRepository struct {
	db querier
}

// NewUserRepository returns a UserRepository that uses the given pool.
func NewUserRepository(db querier) *UserRepository {
	return &UserRepository{db: db}
}

// FindByTokenHash looks up the user whose token hashes to the given value.
// Returns user.ErrUnknownToken when no user matches.
func (r *UserRepository) FindByTokenHash(ctx context.Context, hash string) (*user.Identity, error) {
	rows, err := r.db.Query(ctx, getUserByTokenHashSQL, hash)
	if err != nil {
		return nil, fmt.Errorf("finding user by token hash: %w", err)
	}

	id, err := pgx.CollectExactlyOneRow(rows, func(row pgx.CollectableRow) (user.Identity, error) {
		var i user.Identity
		err := row.Scan(&i.UserID, &i.Email, &i.TokenHash)
		return i, err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrUnknownToken
		}
		return nil, fmt.Errorf("finding user by token hash: %w", err)
	}
	return &id, nil
}
