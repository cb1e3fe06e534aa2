package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/samber/oops"
)

// ErrNotFound indicates no live session exists for a key.
var ErrNotFound = errors.New("session not found")

// Store persists session data keyed by the hash of the session identifier.
type Store interface {
	Find(ctx context.Context, key string) (Data, error)
	Save(ctx context.Context, key string, data Data, expiresAt time.Time) error
	Delete(ctx context.Context, key string) error
}

const tokenBytes = 32

// NewID generates a cryptographically random session identifier.
func NewID() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", oops.Code("SESSION_ID_FAILED").Wrap(err)
	}
	return hex.EncodeToString(b), nil
}

// Key derives the store key for an identifier. Stores never see raw ids.
func Key(id string) string {
	sum := sha256.Sum256([]byte(id))
	return hex.EncodeToString(sum[:])
}
