package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"vaultScope/internal/config"
	"vaultScope/internal/storage/postgres"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "migrate up|down|status",
		Short:     "Run Postgres schema migrations",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "status"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile(cmd), cmd.Flags())
			if err != nil {
				return err
			}
			if cfg.PGDSN == "" {
				return fmt.Errorf("pg-dsn is required")
			}
			return postgres.Migrate(context.Background(), cfg.PGDSN, args[0])
		},
	}

	cmd.Flags().String("pg-dsn", "", "Postgres DSN")

	return cmd
}
