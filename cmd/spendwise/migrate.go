package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/mmynk/spendwise/internal/config"
	"github.com/mmynk/spendwise/internal/storage/sqlite"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the SQLite schema",
		Long: `Apply, roll back or inspect SQLite schema migrations.

The server also applies pending migrations at startup. MongoDB needs no
migrations; its indexes are created on connect.`,
	}
	cmd.AddCommand(migrateUpCmd(), migrateDownCmd(), migrateVersionCmd())
	return cmd
}

func sqliteConfig() (*config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.StorageBackend != config.BackendSQLite {
		return nil, fmt.Errorf("migrations only apply to the sqlite backend, got %q", cfg.StorageBackend)
	}
	return cfg, nil
}

func migrateUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := sqliteConfig()
			if err != nil {
				return err
			}
			if err := sqlite.RunMigrations(cfg.DBPath); err != nil {
				return err
			}
			slog.Info("Migrations applied", "database", cfg.DBPath)
			return nil
		},
	}
}

func migrateDownCmd() *cobra.Command {
	var steps int
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(_ *cobra.Command, _ []string) error {
			if steps < 1 {
				return fmt.Errorf("--steps must be at least 1")
			}
			cfg, err := sqliteConfig()
			if err != nil {
				return err
			}
			if err := sqlite.RollbackMigrations(cfg.DBPath, steps); err != nil {
				return err
			}
			slog.Info("Migrations rolled back", "database", cfg.DBPath, "steps", steps)
			return nil
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")
	return cmd
}

func migrateVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := sqliteConfig()
			if err != nil {
				return err
			}
			version, dirty, err := sqlite.MigrationVersion(cfg.DBPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %t)\n", version, dirty)
			return nil
		},
	}
}
