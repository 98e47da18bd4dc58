package database

import (
	"github.com/upsguard/upsguard/internal/store"
	"github.com/upsguard/upsguard/pkg/logger"
)

// RunMigrations auto-migrates the guardian daemon's schema: events, metric
// samples, daily stats, and the dynamic-config blob.
func RunMigrations() error {
	logger.Info("running database migrations")

	if err := DB.AutoMigrate(store.Models()...); err != nil {
		return err
	}

	logger.Info("database migrations completed")
	return nil
}
