// Package database wires up the gorm connection the store package persists
// through.
package database

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/upsguard/upsguard/internal/config"
	"github.com/upsguard/upsguard/pkg/logger"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var DB *gorm.DB

// Initialize connects to the configured database and runs migrations.
func Initialize(cfg *config.Config) error {
	var err error

	if cfg.Database.Driver == "sqlite" {
		dataDir := filepath.Dir(cfg.Database.Path)
		if dataDir != "" && dataDir != "." {
			if err := os.MkdirAll(dataDir, 0755); err != nil {
				return fmt.Errorf("failed to create data directory: %w", err)
			}
		}
	}

	gormLogLevel := gormlogger.Silent
	if cfg.Logging.Development {
		gormLogLevel = gormlogger.Info
	}

	gormConfig := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormLogLevel),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	switch cfg.Database.Driver {
	case "sqlite":
		DB, err = gorm.Open(sqlite.Open(cfg.Database.Path), gormConfig)
	case "postgres", "postgresql":
		dsn := fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Database.Host,
			cfg.Database.Port,
			cfg.Database.Username,
			cfg.Database.Password,
			cfg.Database.Database,
			cfg.Database.SSLMode,
		)
		DB, err = gorm.Open(postgres.Open(dsn), gormConfig)
	default:
		return fmt.Errorf("unsupported database driver: %s (supported: sqlite, postgres)", cfg.Database.Driver)
	}

	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	logger.Info("database connected",
		zap.String("driver", cfg.Database.Driver),
		zap.String("path", cfg.Database.Path))

	if err := RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Close closes the database connection.
func Close() error {
	if DB == nil {
		return nil
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GetDB returns the process-wide database handle.
func GetDB() *gorm.DB {
	return DB
}
