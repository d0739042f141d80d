package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"task-tracker/backend/migrations"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type MigrationConfig struct {
	// MigrationsPath is a source URL such as file://backend/migrations. When
	// empty the migrations embedded in the binary are used.
	MigrationsPath string
	DBName         string
	MaxRetries     int
	RetryDelay     time.Duration
}

func DefaultMigrationConfig() *MigrationConfig {
	return &MigrationConfig{
		DBName:     "tasks",
		MaxRetries: 3,
		RetryDelay: 2 * time.Second,
	}
}

func RunMigrations(db *gorm.DB, config *MigrationConfig, logger *zap.Logger) error {
	if config == nil {
		config = DefaultMigrationConfig()
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	if err := waitForDatabase(sqlDB, config.MaxRetries, config.RetryDelay, logger); err != nil {
		return fmt.Errorf("database not ready: %w", err)
	}

	m, err := newMigrator(sqlDB, config)
	if err != nil {
		return err
	}

	currentVersion, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		logger.Info("📋 No migrations applied yet")
	case err != nil:
		logger.Warn("⚠️  Could not get current migration version", zap.Error(err))
	default:
		logger.Info("📋 Current migration version", zap.Uint("version", currentVersion), zap.Bool("dirty", dirty))
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("✅ Database schema is up to date")
			return nil
		}
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	finalVersion, dirty, err := m.Version()
	if err != nil {
		return fmt.Errorf("failed to get final migration version: %w", err)
	}
	logger.Info("✅ Database migrations completed", zap.Uint("version", finalVersion), zap.Bool("dirty", dirty))

	return nil
}

func RollbackMigration(db *gorm.DB, config *MigrationConfig, logger *zap.Logger) error {
	if config == nil {
		config = DefaultMigrationConfig()
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	m, err := newMigrator(sqlDB, config)
	if err != nil {
		return err
	}

	logger.Info("⬇️  Rolling back last migration")
	if err := m.Steps(-1); err != nil {
		return fmt.Errorf("failed to rollback migration: %w", err)
	}

	logger.Info("✅ Migration rolled back")
	return nil
}

func GetMigrationVersion(db *gorm.DB, config *MigrationConfig) (uint, bool, error) {
	if config == nil {
		config = DefaultMigrationConfig()
	}

	sqlDB, err := db.DB()
	if err != nil {
		return 0, false, fmt.Errorf("failed to get database instance: %w", err)
	}

	m, err := newMigrator(sqlDB, config)
	if err != nil {
		return 0, false, err
	}

	return m.Version()
}

func newMigrator(sqlDB *sql.DB, config *MigrationConfig) (*migrate.Migrate, error) {
	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{
		DatabaseName:    config.DBName,
		MigrationsTable: "schema_migrations",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create migration driver: %w", err)
	}

	var m *migrate.Migrate
	if config.MigrationsPath != "" {
		m, err = migrate.NewWithDatabaseInstance(config.MigrationsPath, config.DBName, driver)
	} else {
		src, srcErr := iofs.New(migrations.FS, ".")
		if srcErr != nil {
			return nil, fmt.Errorf("failed to open embedded migrations: %w", srcErr)
		}
		m, err = migrate.NewWithInstance("iofs", src, config.DBName, driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create migration instance: %w", err)
	}

	return m, nil
}

func waitForDatabase(db *sql.DB, maxRetries int, retryDelay time.Duration, logger *zap.Logger) error {
	if maxRetries < 1 {
		maxRetries = 1
	}
	for i := 0; i < maxRetries; i++ {
		if err := db.Ping(); err == nil {
			return nil
		}
		if i < maxRetries-1 {
			logger.Info("⏳ Database not ready, retrying",
				zap.Duration("delay", retryDelay),
				zap.Int("attempt", i+1),
				zap.Int("max_attempts", maxRetries))
			time.Sleep(retryDelay)
		}
	}
	return fmt.Errorf("database not ready after %d attempts", maxRetries)
}
