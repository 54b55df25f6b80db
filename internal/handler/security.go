package handler

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/virginia-wolfi/chocolate-shop/internal/domain/user"
)

// identityKey is the context key for the authenticated identity.
type identityKey struct{}

// IdentityFromContext extracts the authenticated identity from the context.
func IdentityFromContext(ctx context.Context) (*user.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(*user.Identity)
	return id, ok
}

// Authenticator validates bearer tokens by HMAC-SHA256 hashing them with a
// server-side pepper and resolving the hash to a user account.
type Authenticator struct {
	users  user.Repository
	pepper []byte
}

// NewAuthenticator creates an Authenticator with the given user repository
// and HMAC pepper.
func NewAuthenticator(users user.Repository, pepper []byte) *Authenticator {
	return &Authenticator{users: users, pepper: pepper}
}

// Require wraps next so it only runs for authenticated requests, with the
// resolved identity stored in the request context.
func (a *Authenticator) Require(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		id, err := a.resolve(r.Context(), token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		ctx := context.WithValue(r.Context(), identityKey{}, id)
		next(w, r.WithContext(ctx))
	}
}

// resolve hashes the token, looks it up, and performs a constant-time
// comparison to guard against timing side-channels even after a successful
// lookup.
func (a *Authenticator) resolve(ctx context.Context, token string) (*user.Identity, error) {
	hexHash := user.HashToken(token, a.pepper)

	id, err := a.users.FindByTokenHash(ctx, hexHash)
	if err != nil {
		return nil, user.ErrUnknownToken
	}

	storedBytes, err := hex.DecodeString(id.TokenHash)
	if err != nil {
		return nil, user.ErrUnknownToken
	}
	hashBytes, err := hex.DecodeString(hexHash)
	if err != nil {
		return nil, user.ErrUnknownToken
	}
	if subtle.ConstantTimeCompare(hashBytes, storedBytes) != 1 {
		return nil, user.ErrUnknownToken
	}

	return id, nil
}

func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) <= len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return "", false
	}
	return auth[len(prefix):], true
}
