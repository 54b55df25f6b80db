// Package user holds the shop account identity resolved from API tokens.
package user

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/go-faster/errors"
)

// ErrUnknownToken is returned when no account matches a token hash.
var ErrUnknownToken = errors.New("unknown token")

// Identity is an authenticated shop account.
type Identity struct {
	UserID    int64
	Email     string
	TokenHash string
}

// Repository resolves HMAC-hashed API tokens to shop accounts.
type Repository interface {
	FindByTokenHash(ctx context.Context, hash string) (*Identity, error)
}

// HashToken computes the hex HMAC-SHA256 of token with the given pepper.
// The seeding tool and the request authenticator share this so stored
// hashes match request hashes.
func HashToken(token string, pepper []byte) string {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}
