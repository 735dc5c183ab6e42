package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"todolists/internal/config"
	"todolists/internal/logging"
	"todolists/internal/store"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the Postgres session schema",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd, opts, true)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back every applied migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd, opts, false)
		},
	})
	return cmd
}

func runMigrate(cmd *cobra.Command, opts *rootOptions, up bool) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	if cfg.SessionBackend != config.BackendPostgres {
		return fmt.Errorf("migrate: session backend is %q, migrations only apply to %q", cfg.SessionBackend, config.BackendPostgres)
	}
	logger := logging.New(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)

	db, err := store.Open(cmd.Context(), cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if up {
		if err := store.ApplyMigrations(cmd.Context(), db, migrationsFS(cfg)); err != nil {
			return err
		}
		logger.Info("migrations applied")
		return nil
	}
	if err := store.RollbackMigrations(cmd.Context(), db, migrationsFS(cfg)); err != nil {
		return err
	}
	logger.Info("migration rolled back")
	return nil
}
