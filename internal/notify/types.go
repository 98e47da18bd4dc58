// Package notify implements fan-out of domain events to enabled
// notification channels with retry and per-channel error bookkeeping.
package notify

import (
	"time"

	"github.com/upsguard/upsguard/internal/notify/channels"
)

// Level is the notification severity, either caller-supplied or derived
// from the event kind.
type Level = channels.Level

const (
	LevelInfo    = channels.LevelInfo
	LevelWarning = channels.LevelWarning
	LevelError   = channels.LevelError
)

// FieldSchema describes one configuration field a channel accepts; a
// renderer elsewhere turns the schema into a form.
type FieldSchema = channels.FieldSchema

// Schema is a channel's full configuration field list.
type Schema = channels.Schema

// Channel is the transport contract: the dispatcher knows nothing about
// specific transports, only this capability set.
type Channel interface {
	Send(title, body string, level Level, timestamp time.Time) (bool, error)
	Test() (bool, error)
	ConfigSchema() Schema
	ValidateConfig(config map[string]string) error
}

// Factory constructs a Channel from its opaque config, validating at
// construction and failing fast.
type Factory func(config map[string]string) (Channel, error)
