package cli

import (
	"errors"
	"fmt"

	"task-tracker/backend/internal/database"
	"task-tracker/backend/internal/repositories"
	"task-tracker/backend/internal/server"

	"github.com/golang-migrate/migrate/v4"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func migrateCmd(rt *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
		Long: `Apply or roll back the schema migrations.

Migrations are embedded in the binary unless MIGRATIONS_PATH points at a
directory of migration files.

Examples:
  taskd migrate up
  taskd migrate down
  taskd migrate version`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.withDatabase(func(pool *database.DatabasePool, m *repositories.MigrationConfig) error {
				return repositories.RunMigrations(pool.DB, m, rt.logger)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.withDatabase(func(pool *database.DatabasePool, m *repositories.MigrationConfig) error {
				return repositories.RollbackMigration(pool.DB, m, rt.logger)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the applied migration version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.withDatabase(func(pool *database.DatabasePool, m *repositories.MigrationConfig) error {
				version, dirty, err := repositories.GetMigrationVersion(pool.DB, m)
				if errors.Is(err, migrate.ErrNilVersion) {
					fmt.Fprintln(cmd.OutOrStdout(), "no migrations applied")
					return nil
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %t)\n", version, dirty)
				return nil
			})
		},
	})

	return cmd
}

func (rt *rootOptions) withDatabase(fn func(*database.DatabasePool, *repositories.MigrationConfig) error) error {
	pool, err := server.OpenDatabase(rt.cfg, rt.logger)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer func() {
		if err := pool.Close(); err != nil {
			rt.logger.Warn("⚠️  Error closing database", zap.Error(err))
		}
	}()

	return fn(pool, server.MigrationConfig(rt.cfg))
}
