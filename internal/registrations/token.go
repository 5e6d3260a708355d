package registrations

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/centre-social/backend/internal/models"
)

const (
	// TokenBytes is the entropy of a confirmation token (hex-encoded to twice as many characters).
	TokenBytes = 32
	// TokenTTL is how long a confirmation link stays valid.
	TokenTTL = 24 * time.Hour
)

// TokenLookup finds the registration currently holding a confirmation token.
type TokenLookup interface {
	GetByToken(ctx context.Context, token string) (*models.Registration, error)
}

// Tokens issues and verifies email confirmation tokens.
type Tokens struct {
	store TokenLookup
	now   func() time.Time
}

// NewTokens creates a token issuer/verifier backed by store.
func NewTokens(store TokenLookup, now func() time.Time) *Tokens {
	if now == nil {
		now = time.Now
	}
	return &Tokens{store: store, now: now}
}

// Issue returns a fresh token and its expiry. The caller persists both on the registration.
func (t *Tokens) Issue() (token string, expiry time.Time, err error) {
	b := make([]byte, TokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", time.Time{}, fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), t.now().Add(TokenTTL), nil
}

// Verify resolves token to its registration. Unknown, consumed and malformed tokens all
// yield ErrTokenNotFound. An expired token yields ErrTokenExpired and the row is left as is.
// Consumption is the caller's job and must be a conditional update.
func (t *Tokens) Verify(ctx context.Context, token string) (*models.Registration, error) {
	if len(token) != 2*TokenBytes {
		return nil, ErrTokenNotFound
	}
	if _, err := hex.DecodeString(token); err != nil {
		return nil, ErrTokenNotFound
	}
	reg, err := t.store.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if reg.EmailTokenExpiry != nil && t.now().After(*reg.EmailTokenExpiry) {
		return nil, ErrTokenExpired
	}
	return reg, nil
}
