package token

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

// MaxAttempts bounds the collision-retry loop. With 16 random bytes a
// collision is practically impossible, so hitting the bound means the
// uniqueness check itself is broken and retrying forever would hide that.
const MaxAttempts = 8

const tokenBytes = 16

var ErrExhausted = errors.New("token: exhausted unique token attempts")

// New returns a random URL-safe token.
func New() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("token: read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// ExistsFunc reports whether a candidate token is already taken.
type ExistsFunc func(ctx context.Context, candidate string) (bool, error)

// Generate produces a token that the exists predicate does not know yet,
// retrying up to MaxAttempts times before giving up with ErrExhausted.
// The persistence layer's unique constraint stays the final arbiter for
// concurrent writers racing on the same candidate.
func Generate(ctx context.Context, exists ExistsFunc) (string, error) {
	for attempt := 0; attempt < MaxAttempts; attempt++ {
		candidate, err := New()
		if err != nil {
			return "", err
		}

		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("token: uniqueness check: %w", err)
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", ErrExhausted
}
