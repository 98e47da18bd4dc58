package store

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// EventStore is an append-only log of domain events, queryable by recency
// and kind, with retention cleanup.
type EventStore interface {
	Append(kind, message string, meta map[string]interface{}, testMode string) error
	Query(sinceDays int, kind string, testMode string) ([]Event, error)
	Cleanup(retentionDays int) (eventsDeleted int64, metricsDeleted int64, err error)
}

// GormEventStore implements EventStore on top of gorm.
type GormEventStore struct {
	db *gorm.DB
}

func NewGormEventStore(db *gorm.DB) *GormEventStore {
	return &GormEventStore{db: db}
}

func (s *GormEventStore) Append(kind, message string, meta map[string]interface{}, testMode string) error {
	var metaJSON string
	if len(meta) > 0 {
		b, err := json.Marshal(meta)
		if err != nil {
			return err
		}
		metaJSON = string(b)
	}
	ev := &Event{
		Kind:      kind,
		Message:   message,
		Meta:      metaJSON,
		TestMode:  testMode,
		CreatedAt: time.Now(),
	}
	return s.db.Create(ev).Error
}

func (s *GormEventStore) Query(sinceDays int, kind string, testMode string) ([]Event, error) {
	q := s.db.Model(&Event{})
	if sinceDays > 0 {
		q = q.Where("created_at >= ?", time.Now().AddDate(0, 0, -sinceDays))
	}
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}
	if testMode != "" {
		q = q.Where("test_mode = ?", testMode)
	}
	var events []Event
	if err := q.Order("created_at DESC").Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

func (s *GormEventStore) Cleanup(retentionDays int) (int64, int64, error) {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	eventsResult := s.db.Where("created_at < ?", cutoff).Delete(&Event{})
	if eventsResult.Error != nil {
		return 0, 0, eventsResult.Error
	}
	metricsResult := s.db.Where("captured_at < ?", cutoff).Delete(&MetricSample{})
	if metricsResult.Error != nil {
		return eventsResult.RowsAffected, 0, metricsResult.Error
	}
	return eventsResult.RowsAffected, metricsResult.RowsAffected, nil
}
