package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/hongminglow/userauth/internal/session"
)

// Ensure SessionStore satisfies the session.Store interface at compile time.
var _ session.Store = (*SessionStore)(nil)

// SessionStore persists sessions in the sessions table.
type SessionStore struct {
	pool pgxPool
	now  func() time.Time
}

// NewSessionStore creates a SessionStore over an open pool.
func NewSessionStore(pool pgxPool) *SessionStore {
	return &SessionStore{pool: pool, now: time.Now}
}

// Find returns live session data for key.
func (s *SessionStore) Find(ctx context.Context, key string) (session.Data, error) {
	const query = `SELECT data FROM sessions WHERE token_hash = $1 AND expires_at > $2`
	var raw []byte
	err := s.pool.QueryRow(ctx, query, key, s.now()).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return session.Data{}, oops.Code("SESSION_NOT_FOUND").Wrap(session.ErrNotFound)
	}
	if err != nil {
		return session.Data{}, oops.Code("SESSION_FIND_FAILED").Wrap(err)
	}

	var data session.Data
	if err := json.Unmarshal(raw, &data); err != nil {
		return session.Data{}, oops.Code("SESSION_DECODE_FAILED").Wrap(err)
	}
	return data, nil
}

// Save upserts the session row.
func (s *SessionStore) Save(ctx context.Context, key string, data session.Data, expiresAt time.Time) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return oops.Code("SESSION_ENCODE_FAILED").Wrap(err)
	}
	const query = `
		INSERT INTO sessions (token_hash, data, expires_at, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (token_hash) DO UPDATE
		SET data = EXCLUDED.data, expires_at = EXCLUDED.expires_at, updated_at = NOW()`
	if _, err := s.pool.Exec(ctx, query, key, raw, expiresAt); err != nil {
		return oops.Code("SESSION_SAVE_FAILED").Wrap(err)
	}
	return nil
}

// Delete removes the session row. Missing rows are not an error.
func (s *SessionStore) Delete(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE token_hash = $1`, key); err != nil {
		return oops.Code("SESSION_DELETE_FAILED").Wrap(err)
	}
	return nil
}

// DeleteExpired removes every expired session and reports how many went.
func (s *SessionStore) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, s.now())
	if err != nil {
		return 0, oops.Code("SESSION_PRUNE_FAILED").Wrap(err)
	}
	return tag.RowsAffected(), nil
}
