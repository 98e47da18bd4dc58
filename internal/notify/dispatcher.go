package notify

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/upsguard/upsguard/internal/config"
	"github.com/upsguard/upsguard/internal/eventbus"
	"github.com/upsguard/upsguard/internal/store"
	"github.com/upsguard/upsguard/pkg/logger"
	"go.uber.org/zap"
)

// maxSendAttempts is the initial attempt plus two retries.
const maxSendAttempts = 3

// eventKindNotificationFailed is the event the dispatcher itself appends
// when a channel send fails; it must never feed back into Notify.
const eventKindNotificationFailed = "NotificationFailed"

// channelEntry binds a configured channel to its runtime instance.
type channelEntry struct {
	id      string
	name    string
	channel Channel
}

// Dispatcher fans domain events out to enabled notification channels with
// bounded retry and per-channel error bookkeeping.
type Dispatcher struct {
	registry *Registry
	events   store.EventStore
	bus      *eventbus.Bus

	mu            sync.Mutex
	channels      []channelEntry
	enabledEvents map[string]bool
	enabled       bool
	channelErrors map[string]string
}

// NewDispatcher builds a Dispatcher bound to cfg's initial channel list.
func NewDispatcher(registry *Registry, cfg config.NotifyConfig, events store.EventStore, bus *eventbus.Bus) *Dispatcher {
	d := &Dispatcher{registry: registry, events: events, bus: bus, channelErrors: make(map[string]string)}
	d.Reconfigure(cfg)
	return d
}

// SubscribeToBus wires the dispatcher to every domain_event broadcast so
// the monitor and shutdown manager never need to call Notify directly.
// The dispatcher's own NotificationFailed events are excluded: routing them
// back through Notify would re-send to the failing channel and recurse,
// since bus delivery is synchronous.
func (d *Dispatcher) SubscribeToBus() {
	if d.bus == nil {
		return
	}
	d.bus.OnDomainEvent(func(e eventbus.DomainEvent) {
		if e.Kind == eventKindNotificationFailed {
			return
		}
		d.Notify(e.Kind, e.Kind, e.Message, e.Meta)
	})
}

// Reconfigure rebinds the channel list and enabled-event set, used when the
// config store reports a change without requiring a daemon restart.
func (d *Dispatcher) Reconfigure(cfg config.NotifyConfig) {
	d.mu.Lock()
	existingErrors := make(map[string]string, len(d.channelErrors))
	for k, v := range d.channelErrors {
		existingErrors[k] = v
	}
	d.mu.Unlock()

	var entries []channelEntry
	currentIDs := make(map[string]bool)

	for i, c := range cfg.Channels {
		id := c.ID
		if id == "" {
			id = fmt.Sprintf("legacy_%d", i)
		}
		currentIDs[id] = true
		if !c.Enabled {
			continue
		}
		channel, err := d.registry.Create(c.PluginID, c.Config)
		if err != nil {
			logger.Warn("failed to configure notification channel", zap.String("name", c.Name), zap.Error(err))
			existingErrors[id] = err.Error()
			continue
		}
		entries = append(entries, channelEntry{id: id, name: c.Name, channel: channel})
		delete(existingErrors, id)
	}

	for id := range existingErrors {
		if !currentIDs[id] {
			delete(existingErrors, id)
		}
	}

	enabledEvents := make(map[string]bool, len(cfg.EnabledEvents))
	for _, e := range cfg.EnabledEvents {
		enabledEvents[e] = true
	}

	d.mu.Lock()
	d.channels = entries
	d.enabledEvents = enabledEvents
	d.enabled = cfg.Enabled
	d.channelErrors = existingErrors
	d.mu.Unlock()
}

// Notify fans a domain event out to every enabled channel, deriving the
// notification level from the event kind. A no-op when notifications are
// disabled, or when the enabled-events set is non-empty and eventKind isn't
// in it; an empty enabled-events set lets every event kind through.
func (d *Dispatcher) Notify(eventKind, title, body string, meta map[string]interface{}) {
	d.NotifyWithLevel(eventKind, title, body, LevelForEvent(eventKind), meta)
}

// NotifyWithLevel is Notify with a caller-supplied level, for callers that
// already know the severity.
func (d *Dispatcher) NotifyWithLevel(eventKind, title, body string, level Level, meta map[string]interface{}) {
	d.mu.Lock()
	enabled := d.enabled
	enabledEvents := d.enabledEvents
	channels := append([]channelEntry{}, d.channels...)
	d.mu.Unlock()

	if !enabled || len(channels) == 0 {
		return
	}
	if len(enabledEvents) > 0 && !enabledEvents[eventKind] {
		return
	}

	if level == LevelWarning || level == LevelError {
		if diag := formatDiagnostics(meta); diag != "" {
			body = body + "\n\n" + diag
		}
	}

	timestamp := time.Now()
	for _, entry := range channels {
		ok, err := d.sendWithRetry(entry, title, body, level, timestamp)
		d.recordOutcome(entry, ok, err)
	}
}

// sendWithRetry attempts Send up to maxSendAttempts times with linear
// backoff (min(attempt*1.0, 5.0)s), small and bounded to avoid flooding
// third-party notification APIs.
func (d *Dispatcher) sendWithRetry(entry channelEntry, title, body string, level Level, timestamp time.Time) (bool, error) {
	var lastErr error
	for attempt := 1; attempt <= maxSendAttempts; attempt++ {
		ok, err := entry.channel.Send(title, body, level, timestamp)
		if ok && err == nil {
			if attempt > 1 {
				logger.Info("notification sent after retry", zap.String("channel", entry.name), zap.Int("attempt", attempt))
			}
			return true, nil
		}
		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("channel reported failure without error detail")
		}
		if attempt < maxSendAttempts {
			delay := time.Duration(minFloat(float64(attempt)*1.0, 5.0) * float64(time.Second))
			logger.Warn("notification send failed, retrying", zap.String("channel", entry.name), zap.Int("attempt", attempt), zap.Error(lastErr))
			time.Sleep(delay)
		}
	}
	return false, lastErr
}

func (d *Dispatcher) recordOutcome(entry channelEntry, ok bool, err error) {
	d.mu.Lock()
	if ok {
		delete(d.channelErrors, entry.id)
		d.mu.Unlock()
		return
	}
	d.channelErrors[entry.id] = err.Error()
	d.mu.Unlock()

	logger.Warn("notification channel failed", zap.String("channel", entry.name), zap.Error(err))
	if d.events != nil {
		_ = d.events.Append(eventKindNotificationFailed, fmt.Sprintf("notification failed via %s: %v", entry.name, err), map[string]interface{}{
			"channel": entry.name, "error": err.Error(),
		}, "")
	}
	if d.bus != nil {
		d.bus.PublishDomainEvent(eventbus.DomainEvent{
			Kind: eventKindNotificationFailed, Message: fmt.Sprintf("notification failed via %s", entry.name),
			Meta: map[string]interface{}{"channel": entry.name, "error": err.Error()},
		})
	}
}

// ChannelErrors returns a copy of the per-channel last-error map, for the
// operator status surface.
func (d *Dispatcher) ChannelErrors() map[string]string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]string, len(d.channelErrors))
	for k, v := range d.channelErrors {
		out[k] = v
	}
	return out
}

// ClearChannelError removes a channel's recorded error once an operator has
// acknowledged or fixed it.
func (d *Dispatcher) ClearChannelError(channelID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.channelErrors, channelID)
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// LevelForEvent derives a notification level from a domain event kind:
// power loss and connection loss -> warning; low battery and shutdown ->
// error; everything else (restored, cancelled, startup, tests) -> info.
func LevelForEvent(eventKind string) Level {
	switch eventKind {
	case "PowerLost", "NutDisconnected":
		return LevelWarning
	case "LowBattery", "ShutdownExecuted", "ShutdownRequested", "HostShutdownFailed":
		return LevelError
	default:
		return LevelInfo
	}
}

// formatDiagnostics builds the diagnostic block appended to warning and
// error bodies. Info-level notifications never carry it.
func formatDiagnostics(meta map[string]interface{}) string {
	if len(meta) == 0 {
		return ""
	}
	var lines []string
	if v, ok := meta["status"]; ok {
		lines = append(lines, fmt.Sprintf("UPS status: %v", v))
	}
	if v, ok := meta["batteryChargePercent"]; ok {
		lines = append(lines, fmt.Sprintf("battery charge: %v%%", v))
	}
	if v, ok := meta["batteryRuntimeSec"]; ok {
		lines = append(lines, fmt.Sprintf("battery runtime: %vs", v))
	}
	if v, ok := meta["inputVoltage"]; ok {
		lines = append(lines, fmt.Sprintf("input voltage: %vV", v))
	}
	if v, ok := meta["loadPercent"]; ok {
		lines = append(lines, fmt.Sprintf("load: %v%%", v))
	}
	if v, ok := meta["powerLostDurationSec"]; ok {
		lines = append(lines, fmt.Sprintf("power lost duration: %vs", v))
	}
	if len(lines) == 0 {
		return ""
	}
	return "diagnostics:\n" + strings.Join(lines, "\n")
}
