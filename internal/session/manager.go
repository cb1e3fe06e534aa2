package session

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/samber/oops"

	"github.com/hongminglow/userauth/internal/logging"
)

// Signer wraps a session identifier into a tamper-evident cookie value.
type Signer interface {
	Sign(sessionID string) (string, error)
	Parse(token string) (string, error)
}

// Options configure the session cookie.
type Options struct {
	CookieName string
	TTL        time.Duration
	Secure     bool
}

// Manager loads sessions at the start of a request and commits them at the end.
type Manager struct {
	store  Store
	signer Signer
	logger *slog.Logger
	opts   Options
	now    func() time.Time
}

// NewManager creates a Manager. Zero options fall back to defaults.
func NewManager(store Store, signer Signer, logger *slog.Logger, opts Options) *Manager {
	if opts.CookieName == "" {
		opts.CookieName = "userauth_session"
	}
	if opts.TTL <= 0 {
		opts.TTL = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{store: store, signer: signer, logger: logger, opts: opts, now: time.Now}
}

// CookieName returns the name of the session cookie.
func (m *Manager) CookieName() string {
	return m.opts.CookieName
}

// Load resolves the request's session. A missing, tampered, or expired cookie
// yields an anonymous session; only store failures are returned as errors.
func (m *Manager) Load(ctx context.Context, r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(m.opts.CookieName)
	if err != nil || cookie.Value == "" {
		return New(), nil
	}

	id, err := m.signer.Parse(cookie.Value)
	if err != nil {
		m.logger.DebugContext(ctx, "discarding invalid session cookie", "error", err)
		return &Session{stale: true}, nil
	}

	data, err := m.store.Find(ctx, Key(id))
	if errors.Is(err, ErrNotFound) {
		return &Session{stale: true}, nil
	}
	if err != nil {
		return nil, oops.Code("SESSION_LOAD_FAILED").Wrap(err)
	}
	return loaded(id, data), nil
}

// Commit persists session changes and writes the cookie. It must run before
// any part of the response body is written.
func (m *Manager) Commit(ctx context.Context, w http.ResponseWriter, s *Session) error {
	if !s.modified {
		if s.stale {
			m.clearCookie(w)
		}
		return nil
	}

	previous := s.id
	if (s.renew || s.destroyed) && previous != "" {
		if err := m.store.Delete(ctx, Key(previous)); err != nil {
			return oops.Code("SESSION_DELETE_FAILED").Wrap(err)
		}
		s.id = ""
	}

	if s.data.Empty() {
		if s.id != "" {
			if err := m.store.Delete(ctx, Key(s.id)); err != nil {
				return oops.Code("SESSION_DELETE_FAILED").Wrap(err)
			}
			s.id = ""
		}
		if previous != "" || s.stale {
			m.clearCookie(w)
		}
		s.reset()
		return nil
	}

	if s.id == "" {
		id, err := NewID()
		if err != nil {
			return err
		}
		s.id = id
	}

	expiresAt := m.now().Add(m.opts.TTL)
	if err := m.store.Save(ctx, Key(s.id), s.data, expiresAt); err != nil {
		return oops.Code("SESSION_SAVE_FAILED").Wrap(err)
	}

	token, err := m.signer.Sign(s.id)
	if err != nil {
		return oops.Code("SESSION_SIGN_FAILED").Wrap(err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.opts.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		MaxAge:   int(m.opts.TTL / time.Second),
		HttpOnly: true,
		Secure:   m.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	s.reset()
	return nil
}

func (m *Manager) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.opts.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Middleware attaches the session to the request context and commits it once
// the handler returns. The handler's response is held back until the commit
// succeeds; a failed commit is reported as a generic server error.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		s, err := m.Load(ctx, r)
		if err != nil {
			logging.LogError(ctx, m.logger, "load session", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		buf := newBufferedResponse()
		next.ServeHTTP(buf, r.WithContext(WithSession(ctx, s)))

		if err := m.Commit(ctx, w, s); err != nil {
			logging.LogError(ctx, m.logger, "commit session", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		buf.flush(w)
	})
}

type contextKey struct{}

// WithSession stores s in ctx.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the request's session.
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(contextKey{}).(*Session)
	return s, ok && s != nil
}
