// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Firrel Software

package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/firrel/regdemo/internal/auth"
	authpg "github.com/firrel/regdemo/internal/auth/postgres"
	"github.com/firrel/regdemo/internal/config"
	"github.com/firrel/regdemo/internal/store"
)

// pruneFactory opens the session store for the prune command. It is replaced
// in tests.
var pruneFactory = func(ctx context.Context, cfg *config.Config) (Pruner, func(), error) {
	pool, err := store.Connect(ctx, cfg.Database.URL, store.ConnectOptions{
		Retries: cfg.Database.ConnectRetries,
		Backoff: cfg.Database.ConnectBackoff,
		Logger:  slog.Default(),
	})
	if err != nil {
		return nil, nil, err
	}

	manager, err := auth.NewSessionManager(authpg.NewSessionRepository(pool))
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return manager, pool.Close, nil
}

// NewSessionsCmd creates the sessions command group.
func NewSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Maintain stored login sessions",
	}
	cmd.PersistentFlags().String("database-url", "", "PostgreSQL connection URL")

	cmd.AddCommand(&cobra.Command{
		Use:   "prune",
		Short: "Delete expired sessions from PostgreSQL",
		Long: `Delete every expired session row. Sessions kept in Redis expire on
their own and need no pruning.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runPrune(cmd, cfg)
		},
	})

	return cmd
}

func runPrune(cmd *cobra.Command, cfg *config.Config) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if cfg.Session.Store == config.StoreRedis {
		cmd.Println("Session store is redis; nothing to prune")
		return nil
	}

	pruner, closeFn, err := pruneFactory(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	n, err := pruner.Prune(ctx)
	if err != nil {
		return err
	}
	cmd.Printf("Pruned %d expired sessions\n", n)
	return nil
}
