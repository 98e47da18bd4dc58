package store

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/upsguard/upsguard/internal/config"
	"gorm.io/gorm"
)

// DynamicConfig is the mutable subset of config.Config the running daemon
// must see without a restart: the hook list, the notifier list, and the
// monitoring mode.
type DynamicConfig struct {
	MonitoringMode config.MonitoringMode
	Hooks          []config.HookConfigEntry
	Notify         config.NotifyConfig
}

// ConfigStore persists DynamicConfig. Callers may re-read on each access
// or use Subscribe to be told about every Put; both are offered since
// callers differ in how eagerly they need to notice a change.
type ConfigStore interface {
	Get() (DynamicConfig, error)
	Put(DynamicConfig) error
	Subscribe() <-chan DynamicConfig
}

// GormConfigStore implements ConfigStore as a single-row JSON blob, with an
// in-process fan-out of changes to anyone who called Subscribe.
type GormConfigStore struct {
	db *gorm.DB

	mu   sync.Mutex
	subs []chan DynamicConfig
}

func NewGormConfigStore(db *gorm.DB) *GormConfigStore {
	return &GormConfigStore{db: db}
}

func (s *GormConfigStore) Get() (DynamicConfig, error) {
	var row GuardianConfig
	err := s.db.First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return DynamicConfig{}, nil
	}
	if err != nil {
		return DynamicConfig{}, err
	}
	var cfg DynamicConfig
	if row.Payload == "" {
		return cfg, nil
	}
	if err := json.Unmarshal([]byte(row.Payload), &cfg); err != nil {
		return DynamicConfig{}, err
	}
	return cfg, nil
}

func (s *GormConfigStore) Put(cfg DynamicConfig) error {
	payload, err := json.Marshal(cfg)
	if err != nil {
		return err
	}

	var row GuardianConfig
	err = s.db.First(&row).Error
	if err == gorm.ErrRecordNotFound {
		row = GuardianConfig{Payload: string(payload), UpdatedAt: time.Now()}
		if err := s.db.Create(&row).Error; err != nil {
			return err
		}
	} else if err != nil {
		return err
	} else {
		row.Payload = string(payload)
		row.UpdatedAt = time.Now()
		if err := s.db.Save(&row).Error; err != nil {
			return err
		}
	}

	s.broadcast(cfg)
	return nil
}

// Subscribe returns a channel that receives every subsequent Put. The
// channel is buffered so a slow subscriber never blocks Put.
func (s *GormConfigStore) Subscribe() <-chan DynamicConfig {
	ch := make(chan DynamicConfig, 4)
	s.mu.Lock()
	s.subs = append(s.subs, ch)
	s.mu.Unlock()
	return ch
}

func (s *GormConfigStore) broadcast(cfg DynamicConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- cfg:
		default:
		}
	}
}
