package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/hongminglow/userauth/internal/config"
	"github.com/hongminglow/userauth/internal/storage/postgres"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
		Long:  `Apply, roll back, or inspect the PostgreSQL schema. SQLite databases are created with their schema on open.`,
	}

	var confirm bool
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back every migration (destroys all data)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !confirm {
				return oops.Code("CONFIRMATION_REQUIRED").Errorf("migrate down drops all data; pass --confirm")
			}
			return withMigrator(cmd, func(m *postgres.Migrator) error {
				cmd.Println("Rolling back migrations...")
				if err := m.Down(); err != nil {
					return err
				}
				cmd.Println("Rollback completed")
				return nil
			})
		},
	}
	down.Flags().BoolVar(&confirm, "confirm", false, "confirm the destructive rollback")

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(m *postgres.Migrator) error {
				cmd.Println("Running migrations...")
				if err := m.Up(); err != nil {
					return err
				}
				cmd.Println("Migrations completed successfully")
				return nil
			})
		},
	})
	cmd.AddCommand(down)
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(m *postgres.Migrator) error {
				version, dirty, err := m.Version()
				if err != nil {
					return err
				}
				cmd.Printf("version %d (dirty: %t)\n", version, dirty)
				return nil
			})
		},
	})
	return cmd
}

func withMigrator(cmd *cobra.Command, fn func(*postgres.Migrator) error) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.DatabaseDriver != config.DriverPostgres {
		return oops.Code("CONFIG_INVALID").
			With("database_driver", cfg.DatabaseDriver).
			Errorf("migrations apply to the postgres driver only")
	}

	m, err := postgres.NewMigrator(cfg.DatabaseURL)
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "init migrator").Wrap(err)
	}
	runErr := fn(m)
	closeErr := m.Close()
	if runErr != nil {
		return oops.Code("MIGRATION_FAILED").Wrap(runErr)
	}
	return closeErr
}
