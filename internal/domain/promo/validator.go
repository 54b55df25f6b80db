package promo

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// Validator checks a promo code against a user and returns the code when it
// is currently usable by that user.
type Validator interface {
	Validate(ctx context.Context, code string, userID int64) (*Code, error)
}

// RepoValidator implements Validator by looking up codes from a Repository
// and consulting the usage ledger.
type RepoValidator struct {
	codes Repository
	usage UsageRepository
	now   func() time.Time
}

// NewRepoValidator creates a RepoValidator backed by the given repositories.
func NewRepoValidator(codes Repository, usage UsageRepository) *RepoValidator {
	return &RepoValidator{codes: codes, usage: usage, now: time.Now}
}

// Validate looks up the code, checks that now falls within its validity
// window (inclusive on both ends), and that the user has not consumed it
// before. It never records consumption; that happens inside the checkout
// transaction.
func (v *RepoValidator) Validate(ctx context.Context, code string, userID int64) (*Code, error) {
	pc, err := v.codes.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrInvalidCode) {
			return nil, ErrInvalidCode
		}
		return nil, errors.Wrap(err, "lookup promo code")
	}

	now := v.now()
	if now.Before(pc.ValidFrom) || now.After(pc.ValidTo) {
		return nil, ErrExpired
	}

	used, err := v.usage.Exists(ctx, userID, pc.ID)
	if err != nil {
		return nil, errors.Wrap(err, "check promo usage")
	}
	if used {
		return nil, ErrAlreadyUsed
	}

	return pc, nil
}
