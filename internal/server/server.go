package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/samber/oops"

	"github.com/hongminglow/userauth/internal/accounts"
	"github.com/hongminglow/userauth/internal/auth"
	"github.com/hongminglow/userauth/internal/config"
	"github.com/hongminglow/userauth/internal/http/handlers"
	"github.com/hongminglow/userauth/internal/metrics"
	"github.com/hongminglow/userauth/internal/middleware"
	"github.com/hongminglow/userauth/internal/session"
	"github.com/hongminglow/userauth/internal/storage"
)

// Deps are the long-lived collaborators the server is built on.
type Deps struct {
	Users    storage.UserStore
	Sessions session.Store
	Pinger   handlers.Pinger
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
}

// Server wraps an http.Server with configured routes.
type Server struct {
	inner *http.Server
}

// New wires up middleware, routes, and returns a ready server.
func New(cfg config.Config, deps Deps) (*Server, error) {
	handler, err := NewHandler(cfg, deps)
	if err != nil {
		return nil, err
	}

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return &Server{inner: httpServer}, nil
}

// NewHandler builds the full middleware and route stack.
func NewHandler(cfg config.Config, deps Deps) (http.Handler, error) {
	if deps.Users == nil || deps.Sessions == nil {
		return nil, oops.Code("SERVER_INVALID_CONFIG").Errorf("user and session stores are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	m := deps.Metrics
	if m == nil {
		m = metrics.New()
	}

	hasher := auth.NewBcryptHasher(cfg.BcryptCost)
	authSvc, err := auth.NewService(deps.Users, hasher, logger, auth.WithRecorder(m))
	if err != nil {
		return nil, err
	}
	accountSvc, err := accounts.NewService(deps.Users, hasher, logger, accounts.WithRecorder(m))
	if err != nil {
		return nil, err
	}

	guard := auth.NewGuard(cfg.LoginPath, cfg.HomePath)
	tokens := auth.NewTokenManager(cfg.SessionSecret, cfg.SessionIssuer, cfg.SessionTTL)
	sessions := session.NewManager(deps.Sessions, tokens, logger, session.Options{
		CookieName: cfg.SessionCookie,
		TTL:        cfg.SessionTTL,
		Secure:     cfg.SecureCookies,
	})

	mux := http.NewServeMux()
	handlers.NewHealthHandler(time.Now(), deps.Pinger).Register(mux)
	handlers.NewAuthHandler(authSvc, guard, logger).Register(mux)
	handlers.NewAccountsHandler(accountSvc, guard).Register(mux)

	root := http.NewServeMux()
	root.Handle("GET /metrics", m.Handler())
	root.Handle("/", sessions.Middleware(mux))

	return middleware.CORS(cfg.CORSOrigins,
		middleware.Logging(logger,
			middleware.Metrics(m, root))), nil
}

// Start begins serving HTTP traffic.
func (s *Server) Start() error {
	return s.inner.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.inner.Shutdown(ctx)
}
