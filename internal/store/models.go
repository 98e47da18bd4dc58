// Package store implements the guardian's persistence collaborators
// (events store, metrics store, daily-stats store, config store) on top of
// gorm, plus in-memory variants for tests.
package store

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Event is one row in the append-only events log.
type Event struct {
	ID        string `gorm:"primaryKey"`
	Kind      string `gorm:"index"`
	Message   string
	Meta      string // JSON-encoded meta map
	TestMode  string
	CreatedAt time.Time `gorm:"index"`
}

func (e *Event) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}

// MetricSample is one row of a coarse-cadence UPS telemetry sample, a
// subset of ups.Snapshot's fields.
type MetricSample struct {
	ID                   uint `gorm:"primaryKey"`
	Status               string
	BatteryChargePercent *float64
	BatteryRuntimeSec    *float64
	InputVoltage         *float64
	OutputVoltage        *float64
	LoadPercent          *float64
	UPSTemperature       *float64
	TestMode             string
	CapturedAt           time.Time `gorm:"index"`
}

// DailyStats is one row of the monitor's daily communication rollover.
type DailyStats struct {
	ID              uint   `gorm:"primaryKey"`
	Date            string `gorm:"uniqueIndex:idx_daily_stats_date_mode"`
	Mode            string `gorm:"uniqueIndex:idx_daily_stats_date_mode"`
	EventModeActive bool
	CommCount       int
	MinLatencyMs    float64
	AvgLatencyMs    float64
	MaxLatencyMs    float64
	UptimeSeconds   int64
	UpdatedAt       time.Time
}

// GuardianConfig persists the mutable subset of config.Config that the
// running daemon must see without a restart — the hook list, notifier list,
// and monitoring mode — as a single-row JSON blob.
type GuardianConfig struct {
	ID        uint `gorm:"primaryKey"`
	Payload   string
	UpdatedAt time.Time
}

// Models returns every model this package owns, for AutoMigrate call sites.
func Models() []interface{} {
	return []interface{}{
		&Event{},
		&MetricSample{},
		&DailyStats{},
		&GuardianConfig{},
	}
}
