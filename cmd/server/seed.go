package main

import (
	"context"
	"os"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/hongminglow/userauth/internal/accounts"
	"github.com/hongminglow/userauth/internal/auth"
)

// NewSeedAdminCmd creates the seed-admin subcommand.
func NewSeedAdminCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "seed-admin",
		Short: "Create or promote an administrator account",
		Long: `Ensure the given email belongs to an administrator. A missing account is
created with --password (or ADMIN_PASSWORD); an existing one is promoted and
keeps its password.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if email == "" {
				return oops.Code("CONFIG_INVALID").Errorf("--email is required")
			}
			if password == "" {
				password = os.Getenv("ADMIN_PASSWORD")
			}
			return runSeedAdmin(cmd, email, password)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "administrator email")
	cmd.Flags().StringVar(&password, "password", "", "password for a new account (default $ADMIN_PASSWORD)")
	return cmd
}

func runSeedAdmin(cmd *cobra.Command, email, password string) error {
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

	svc, err := accounts.NewService(b.users, auth.NewBcryptHasher(cfg.BcryptCost), logger)
	if err != nil {
		return err
	}
	user, created, err := svc.EnsureAdmin(ctx, email, password)
	if err != nil {
		return oops.Code("ADMIN_SEED_FAILED").With("email", email).Wrap(err)
	}
	if created {
		cmd.Printf("Created administrator %s (id %d)\n", user.Email, user.ID)
	} else {
		cmd.Printf("%s is an administrator (id %d)\n", user.Email, user.ID)
	}
	return nil
}
