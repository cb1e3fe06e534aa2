package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hongminglow/userauth/internal/logging"
	"github.com/hongminglow/userauth/internal/metrics"
	"github.com/hongminglow/userauth/internal/server"
)

const pruneInterval = 10 * time.Minute

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b, err := openBackends(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.close()

	srv, err := server.New(cfg, server.Deps{
		Users:    b.users,
		Sessions: b.sessions,
		Pinger:   b.pinger,
		Logger:   logger,
		Metrics:  metrics.New(),
	})
	if err != nil {
		return err
	}

	go pruneLoop(ctx, b.sessions, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("userauth listening", "addr", cfg.HTTPAddress(), "driver", cfg.DatabaseDriver)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.LogError(shutdownCtx, logger, "graceful shutdown failed", err)
		return err
	}
	logger.Info("userauth stopped")
	return nil
}

// pruneLoop drops expired sessions until ctx is cancelled.
func pruneLoop(ctx context.Context, store expiringStore, logger *slog.Logger) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.DeleteExpired(ctx)
			if err != nil {
				if ctx.Err() == nil {
					logging.LogError(ctx, logger, "prune sessions failed", err)
				}
				continue
			}
			if n > 0 {
				logger.DebugContext(ctx, "pruned expired sessions", "count", n)
			}
		}
	}
}
