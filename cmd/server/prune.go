package main

import (
	"context"

	"github.com/spf13/cobra"
)

// NewPruneSessionsCmd creates the prune-sessions subcommand.
func NewPruneSessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune-sessions",
		Short: "Delete expired sessions",
		RunE:  runPruneSessions,
	}
}

func runPruneSessions(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx := context.Background()
	b, err := openBackends(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.close()

	n, err := b.sessions.DeleteExpired(ctx)
	if err != nil {
		return err
	}
	cmd.Printf("Deleted %d expired sessions\n", n)
	return nil
}
