package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/hrdesk/internal/store/pg"
)

func resolveDSN() (string, error) {
	// DSN comes from environment only (secret, never in the config file).
	cfg, err := loadConfig()
	if err != nil {
		return "", fmt.Errorf("load config: %w", err)
	}
	if cfg.Database.PostgresDSN == "" {
		return "", fmt.Errorf("HRDESK_POSTGRES_DSN environment variable is not set")
	}
	return cfg.Database.PostgresDSN, nil
}

func withMigrator(fn func(m *migrate.Migrate, dsn string) error) error {
	dsn, err := resolveDSN()
	if err != nil {
		return err
	}
	m, err := pg.NewMigrator(dsn)
	if err != nil {
		return err
	}
	defer m.Close()
	return fn(m, dsn)
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Postgres schema migration management",
	}
	cmd.AddCommand(migrateUpCmd())
	cmd.AddCommand(migrateDownCmd())
	cmd.AddCommand(migrateVersionCmd())
	cmd.AddCommand(migrateForceCmd())
	return cmd
}

func migrateUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations and data hooks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(m *migrate.Migrate, dsn string) error {
				if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
					return fmt.Errorf("migrate up: %w", err)
				}
				v, dirty, _ := m.Version()
				slog.Info("migration complete", "version", v, "dirty", dirty)

				db, err := pg.OpenDB(dsn)
				if err != nil {
					return fmt.Errorf("connect for data hooks: %w", err)
				}
				defer db.Close()

				count, err := pg.RunPendingHooks(context.Background(), db, v)
				if err != nil {
					return err
				}
				if count > 0 {
					slog.Info("data hooks applied", "count", count)
				}
				return nil
			})
		},
	}
}

func migrateDownCmd() *cobra.Command {
	var steps int
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations (default: 1 step)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(m *migrate.Migrate, _ string) error {
				if steps <= 0 {
					steps = 1
				}
				if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
					return fmt.Errorf("migrate down: %w", err)
				}
				v, dirty, _ := m.Version()
				slog.Info("rollback complete", "version", v, "dirty", dirty)
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&steps, "steps", "n", 1, "number of steps to roll back")
	return cmd
}

func migrateVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show current migration version and pending data hooks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(m *migrate.Migrate, dsn string) error {
				v, dirty, err := m.Version()
				if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
					return fmt.Errorf("get version: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version: %d (required %d), dirty: %v\n", v, pg.RequiredSchemaVersion, dirty)

				db, err := pg.OpenDB(dsn)
				if err != nil {
					return err
				}
				defer db.Close()
				pending, err := pg.PendingHooks(context.Background(), db)
				if err != nil {
					return err
				}
				for _, name := range pending {
					fmt.Fprintf(cmd.OutOrStdout(), "pending data hook: %s\n", name)
				}
				return nil
			})
		},
	}
}

func migrateForceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "force <version>",
		Short: "Force set migration version (no migration applied)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid version: %w", err)
			}
			return withMigrator(func(m *migrate.Migrate, _ string) error {
				if err := m.Force(version); err != nil {
					return fmt.Errorf("force version: %w", err)
				}
				slog.Info("forced version", "version", version)
				return nil
			})
		},
	}
}
