package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun"

	"agenda/backend/internal/config"
	"agenda/backend/internal/store/postgres"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the Postgres schema",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDB(cmd.Context(), func(ctx context.Context, db *bun.DB, log logFn) error {
				group, err := postgres.MigrateUp(ctx, db)
				if err != nil {
					return err
				}
				if group.IsZero() {
					log("no new migrations")
					return nil
				}
				log("migrated to " + group.String())
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "rollback",
		Short: "Roll back the last migration group",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDB(cmd.Context(), func(ctx context.Context, db *bun.DB, log logFn) error {
				group, err := postgres.MigrateRollback(ctx, db)
				if err != nil {
					return err
				}
				if group.IsZero() {
					log("nothing to roll back")
					return nil
				}
				log("rolled back " + group.String())
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDB(cmd.Context(), func(ctx context.Context, db *bun.DB, log logFn) error {
				ms, err := postgres.MigrationStatus(ctx, db)
				if err != nil {
					return err
				}
				log("migrations: " + ms.String())
				log("unapplied: " + ms.Unapplied().String())
				return nil
			})
		},
	})
	return cmd
}

type logFn func(msg string)

func withDB(ctx context.Context, fn func(ctx context.Context, db *bun.DB, log logFn) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := newLogger(cfg).With().Str("component", "migrate").Logger()
	if cfg.DatabaseURL == "" {
		return errors.New("database.url is required for migrations")
	}

	db, err := postgres.Open(ctx, cfg.DatabaseURL, postgres.PoolConfig{
		MaxOpenConns:   1,
		MaxIdleConns:   1,
		ConnectTimeout: cfg.DBConnectTimeout,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := postgres.Close(db); err != nil {
			log.Warn().Err(err).Msg("database close failed")
		}
	}()

	return fn(ctx, db, func(msg string) {
		log.Info().Fields(databaseFields(cfg.DatabaseURL)).Msg(msg)
	})
}
