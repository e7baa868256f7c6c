package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/josh-kwaku/opsledger/internal/config"
	"github.com/josh-kwaku/opsledger/internal/logging"
	"github.com/josh-kwaku/opsledger/migrations"
)

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the postgres schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runMigration(cmd, "up")
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Drop every table the migrations created",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runMigration(cmd, "down")
	},
}

func runMigration(cmd *cobra.Command, direction string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.StorageBackend != config.StoragePostgres {
		return fmt.Errorf("migrate: STORAGE_BACKEND is %q, nothing to migrate", cfg.StorageBackend)
	}
	logger := logging.Init("opsledger-migrate", cfg.LogLevel, cfg.AppEnv)

	db, err := connectDB(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if direction == "down" {
		err = migrations.Down(cmd.Context(), db)
	} else {
		err = migrations.Up(cmd.Context(), db)
	}
	if err != nil {
		return err
	}
	logger.Info("migrations applied", "direction", direction)
	return nil
}
