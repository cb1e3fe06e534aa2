package main

import (
	"context"
	"log/slog"

	"github.com/samber/oops"

	"github.com/hongminglow/userauth/internal/config"
	"github.com/hongminglow/userauth/internal/http/handlers"
	"github.com/hongminglow/userauth/internal/session"
	"github.com/hongminglow/userauth/internal/storage"
	"github.com/hongminglow/userauth/internal/storage/postgres"
	"github.com/hongminglow/userauth/internal/storage/sqlite"
)

// expiringStore is a session store that can drop expired records.
type expiringStore interface {
	session.Store
	DeleteExpired(ctx context.Context) (int64, error)
}

// backends bundles the stores selected by configuration.
type backends struct {
	users    storage.UserStore
	sessions expiringStore
	pinger   handlers.Pinger
	close    func()
}

// openBackends connects to the configured database. Postgres holds both users
// and sessions; SQLite holds users and keeps sessions in memory.
func openBackends(ctx context.Context, cfg config.Config, logger *slog.Logger) (*backends, error) {
	switch cfg.DatabaseDriver {
	case config.DriverPostgres:
		if cfg.AutoMigrate {
			logger.InfoContext(ctx, "applying migrations")
			if err := postgres.Migrate(cfg.DatabaseURL); err != nil {
				return nil, err
			}
		}
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
		}
		return &backends{
			users:    postgres.NewUserStore(pool),
			sessions: postgres.NewSessionStore(pool),
			pinger:   pool,
			close:    pool.Close,
		}, nil

	case config.DriverSQLite:
		store, err := sqlite.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "open sqlite").Wrap(err)
		}
		return &backends{
			users:    store,
			sessions: session.NewMemoryStore(),
			pinger:   store,
			close:    func() { _ = store.Close() },
		}, nil
	}
	return nil, oops.Code("CONFIG_INVALID").Errorf("unknown database driver %q", cfg.DatabaseDriver)
}
