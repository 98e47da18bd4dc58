package store

import (
	"time"

	"gorm.io/gorm"
)

// MetricStore holds coarse-cadence UPS telemetry samples.
type MetricStore interface {
	Append(sample MetricSample, testMode string) error
	Query(sinceHours int, testMode string) ([]MetricSample, error)
}

// GormMetricStore implements MetricStore on top of gorm.
type GormMetricStore struct {
	db *gorm.DB
}

func NewGormMetricStore(db *gorm.DB) *GormMetricStore {
	return &GormMetricStore{db: db}
}

func (s *GormMetricStore) Append(sample MetricSample, testMode string) error {
	sample.TestMode = testMode
	if sample.CapturedAt.IsZero() {
		sample.CapturedAt = time.Now()
	}
	return s.db.Create(&sample).Error
}

func (s *GormMetricStore) Query(sinceHours int, testMode string) ([]MetricSample, error) {
	q := s.db.Model(&MetricSample{})
	if sinceHours > 0 {
		q = q.Where("captured_at >= ?", time.Now().Add(-time.Duration(sinceHours)*time.Hour))
	}
	if testMode != "" {
		q = q.Where("test_mode = ?", testMode)
	}
	var samples []MetricSample
	if err := q.Order("captured_at DESC").Find(&samples).Error; err != nil {
		return nil, err
	}
	return samples, nil
}

// DailyStatsStore holds one aggregate row per day of monitor communication.
type DailyStatsStore interface {
	Upsert(date, mode string, eventModeActive bool, commCount int, minMs, avgMs, maxMs float64, uptime int64) error
}

// GormDailyStatsStore implements DailyStatsStore on top of gorm.
type GormDailyStatsStore struct {
	db *gorm.DB
}

func NewGormDailyStatsStore(db *gorm.DB) *GormDailyStatsStore {
	return &GormDailyStatsStore{db: db}
}

func (s *GormDailyStatsStore) Upsert(date, mode string, eventModeActive bool, commCount int, minMs, avgMs, maxMs float64, uptime int64) error {
	row := DailyStats{
		Date:            date,
		Mode:            mode,
		EventModeActive: eventModeActive,
		CommCount:       commCount,
		MinLatencyMs:    minMs,
		AvgLatencyMs:    avgMs,
		MaxLatencyMs:    maxMs,
		UptimeSeconds:   uptime,
		UpdatedAt:       time.Now(),
	}

	var existing DailyStats
	err := s.db.Where("date = ? AND mode = ?", date, mode).First(&existing).Error
	if err == gorm.ErrRecordNotFound {
		return s.db.Create(&row).Error
	}
	if err != nil {
		return err
	}
	row.ID = existing.ID
	return s.db.Save(&row).Error
}
