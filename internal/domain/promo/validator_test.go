package promo

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCodes struct {
	codes map[string]*Code
	err   error
}

func (s *stubCodes) FindByCode(_ context.Context, code string) (*Code, error) {
	if s.err != nil {
		return nil, s.err
	}
	c, ok := s.codes[code]
	if !ok {
		return nil, ErrInvalidCode
	}
	return c, nil
}

type stubUsage struct {
	used map[int64]map[int64]bool
	err  error
}

func (s *stubUsage) Exists(_ context.Context, userID, promoID int64) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.used[userID][promoID], nil
}

func (s *stubUsage) Record(_ context.Context, userID, promoID int64) error {
	if s.used[userID][promoID] {
		return ErrAlreadyUsed
	}
	if s.used == nil {
		s.used = make(map[int64]map[int64]bool)
	}
	if s.used[userID] == nil {
		s.used[userID] = make(map[int64]bool)
	}
	s.used[userID][promoID] = true
	return nil
}

func newValidator(codes *stubCodes, usage *stubUsage, now time.Time) *RepoValidator {
	v := NewRepoValidator(codes, usage)
	v.now = func() time.Time { return now }
	return v
}

func TestValidate(t *testing.T) {
	now := time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)
	code := &Code{
		ID:        7,
		Code:      "CHOCOLOVE",
		Discount:  decimal.RequireFromString("0.25"),
		ValidFrom: now.Add(-24 * time.Hour),
		ValidTo:   now.Add(24 * time.Hour),
	}
	codes := &stubCodes{codes: map[string]*Code{"CHOCOLOVE": code}}

	t.Run("usable code", func(t *testing.T) {
		v := newValidator(codes, &stubUsage{}, now)

		got, err := v.Validate(context.Background(), "CHOCOLOVE", 1)
		require.NoError(t, err)
		assert.Equal(t, int64(7), got.ID)
		assert.True(t, got.Discount.Equal(decimal.RequireFromString("0.25")))
	})

	t.Run("unknown code", func(t *testing.T) {
		v := newValidator(codes, &stubUsage{}, now)

		_, err := v.Validate(context.Background(), "NOPE", 1)
		assert.ErrorIs(t, err, ErrInvalidCode)
	})

	t.Run("already used", func(t *testing.T) {
		usage := &stubUsage{used: map[int64]map[int64]bool{1: {7: true}}}
		v := newValidator(codes, usage, now)

		_, err := v.Validate(context.Background(), "CHOCOLOVE", 1)
		assert.ErrorIs(t, err, ErrAlreadyUsed)

		// A different user is unaffected by user 1's consumption.
		_, err = v.Validate(context.Background(), "CHOCOLOVE", 2)
		assert.NoError(t, err)
	})

	t.Run("lookup error is wrapped", func(t *testing.T) {
		v := newValidator(&stubCodes{err: errors.New("connection reset")}, &stubUsage{}, now)

		_, err := v.Validate(context.Background(), "CHOCOLOVE", 1)
		require.Error(t, err)
		assert.False(t, IsValidationError(err))
	})

	t.Run("usage check error is wrapped", func(t *testing.T) {
		v := newValidator(codes, &stubUsage{err: errors.New("connection reset")}, now)

		_, err := v.Validate(context.Background(), "CHOCOLOVE", 1)
		require.Error(t, err)
		assert.False(t, IsValidationError(err))
	})
}

func TestValidate_Window(t *testing.T) {
	from := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, time.March, 31, 23, 59, 59, 0, time.UTC)
	code := &Code{ID: 3, Code: "SWEETWEEK", Discount: decimal.RequireFromString("0.10"), ValidFrom: from, ValidTo: to}
	codes := &stubCodes{codes: map[string]*Code{"SWEETWEEK": code}}

	tests := []struct {
		name    string
		now     time.Time
		wantErr error
	}{
		{name: "before window", now: from.Add(-time.Second), wantErr: ErrExpired},
		{name: "at window start", now: from},
		{name: "inside window", now: from.AddDate(0, 0, 14)},
		{name: "at window end", now: to},
		{name: "after window", now: to.Add(time.Second), wantErr: ErrExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newValidator(codes, &stubUsage{}, tt.now)

			_, err := v.Validate(context.Background(), "SWEETWEEK", 1)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestIsValidationError(t *testing.T) {
	assert.True(t, IsValidationError(ErrInvalidCode))
	assert.True(t, IsValidationError(ErrExpired))
	assert.True(t, IsValidationError(ErrAlreadyUsed))
	assert.True(t, IsValidationError(errors.Wrap(ErrExpired, "validate")))
	assert.False(t, IsValidationError(errors.New("boom")))
	assert.False(t, IsValidationError(nil))
}
