package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/hongminglow/userauth/internal/config"
	"github.com/hongminglow/userauth/internal/logging"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the userauth CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "userauth",
		Short:        "userauth - registration, login and user administration service",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewSeedAdminCmd())
	cmd.AddCommand(NewPruneSessionsCmd())

	return cmd
}

// loadConfig resolves configuration for cmd and builds its logger.
func loadConfig(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return config.Config{}, nil, err
	}
	logger := logging.Setup("userauth", cfg.LogFormat, os.Stdout)
	slog.SetDefault(logger)
	return cfg, logger, nil
}
