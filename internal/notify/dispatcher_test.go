package notify

import (
	"strings"
	"testing"

	"github.com/upsguard/upsguard/internal/config"
	"github.com/upsguard/upsguard/internal/eventbus"
	"github.com/upsguard/upsguard/internal/notify/channels"
	"github.com/upsguard/upsguard/internal/store"
)

func mockEntry(id string, enabled bool, extra map[string]string) config.NotifyChannelEntry {
	cfg := map[string]string{}
	for k, v := range extra {
		cfg[k] = v
	}
	return config.NotifyChannelEntry{ID: id, Name: id, PluginID: "mock", Enabled: enabled, Config: cfg}
}

func TestDispatcher_NotifyFansOutToEveryEnabledChannel(t *testing.T) {
	registry := NewRegistry()
	cfg := config.NotifyConfig{
		Enabled:       true,
		EnabledEvents: []string{"PowerLost"},
		Channels:      []config.NotifyChannelEntry{mockEntry("a", true, nil), mockEntry("b", true, nil)},
	}
	d := NewDispatcher(registry, cfg, store.NewMemoryEventStore(), eventbus.New())

	d.Notify("PowerLost", "PowerLost", "utility power lost", nil)

	for _, id := range []string{"a", "b"} {
		if calls := mustMockChannel(t, d, id).Calls(); len(calls) != 1 {
			t.Fatalf("expected channel %s to receive exactly one send, got %d", id, len(calls))
		}
		if errs := d.ChannelErrors(); errs[id] != "" {
			t.Fatalf("expected channel %s to have no recorded error, got %q", id, errs[id])
		}
	}
}

func TestDispatcher_NoOpWhenEventNotEnabled(t *testing.T) {
	registry := NewRegistry()
	cfg := config.NotifyConfig{
		Enabled:       true,
		EnabledEvents: []string{"ShutdownExecuted"},
		Channels:      []config.NotifyChannelEntry{mockEntry("a", true, nil)},
	}
	d := NewDispatcher(registry, cfg, store.NewMemoryEventStore(), eventbus.New())

	d.Notify("PowerLost", "PowerLost", "utility power lost", nil)

	if errs := d.ChannelErrors(); len(errs) != 0 {
		t.Fatalf("expected no channel activity for a non-enabled event, got %+v", errs)
	}
}

func TestDispatcher_NoOpWhenDisabledGlobally(t *testing.T) {
	registry := NewRegistry()
	cfg := config.NotifyConfig{
		Enabled:       false,
		EnabledEvents: nil,
		Channels:      []config.NotifyChannelEntry{mockEntry("a", true, nil)},
	}
	d := NewDispatcher(registry, cfg, store.NewMemoryEventStore(), eventbus.New())

	d.Notify("PowerLost", "PowerLost", "utility power lost", nil)

	if errs := d.ChannelErrors(); len(errs) != 0 {
		t.Fatalf("expected no channel activity when notifications are globally disabled, got %+v", errs)
	}
}

func TestDispatcher_RetriesThenRecordsChannelError(t *testing.T) {
	registry := NewRegistry()
	cfg := config.NotifyConfig{
		Enabled:       true,
		EnabledEvents: nil, // empty set means every event is eligible
		Channels:      []config.NotifyChannelEntry{mockEntry("flaky", true, map[string]string{"fail": "true", "failMessage": "boom"})},
	}
	events := store.NewMemoryEventStore()
	bus := eventbus.New()
	var domainEvents []eventbus.DomainEvent
	bus.OnDomainEvent(func(e eventbus.DomainEvent) { domainEvents = append(domainEvents, e) })

	d := NewDispatcher(registry, cfg, events, bus)
	d.Notify("PowerLost", "PowerLost", "utility power lost", nil)

	errs := d.ChannelErrors()
	if errs["flaky"] != "boom" {
		t.Fatalf("expected channel error \"boom\" recorded, got %q", errs["flaky"])
	}

	found := false
	for _, e := range domainEvents {
		if e.Kind == "NotificationFailed" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a NotificationFailed domain event, got %+v", domainEvents)
	}
}

func TestDispatcher_OwnFailureEventDoesNotFeedBack(t *testing.T) {
	registry := NewRegistry()
	cfg := config.NotifyConfig{
		Enabled:       true,
		EnabledEvents: nil, // empty set means every event is eligible
		Channels:      []config.NotifyChannelEntry{mockEntry("down", true, map[string]string{"fail": "true"})},
	}
	bus := eventbus.New()
	d := NewDispatcher(registry, cfg, store.NewMemoryEventStore(), bus)
	d.SubscribeToBus()

	// A send failure publishes NotificationFailed on the same bus the
	// dispatcher subscribes to; that event must not re-enter Notify, or a
	// single dead endpoint would recurse forever.
	bus.PublishDomainEvent(eventbus.DomainEvent{Kind: "PowerLost", Message: "utility power lost"})

	mockChannel := mustMockChannel(t, d, "down")
	if got := len(mockChannel.Calls()); got != maxSendAttempts {
		t.Fatalf("expected exactly %d Send attempts for one event, got %d", maxSendAttempts, got)
	}
}

func TestDispatcher_ClearChannelError(t *testing.T) {
	registry := NewRegistry()
	cfg := config.NotifyConfig{
		Enabled:  true,
		Channels: []config.NotifyChannelEntry{mockEntry("flaky", true, map[string]string{"fail": "true"})},
	}
	d := NewDispatcher(registry, cfg, store.NewMemoryEventStore(), eventbus.New())
	d.Notify("PowerLost", "PowerLost", "utility power lost", nil)

	if len(d.ChannelErrors()) == 0 {
		t.Fatalf("expected a recorded channel error before clearing")
	}
	d.ClearChannelError("flaky")
	if errs := d.ChannelErrors(); errs["flaky"] != "" {
		t.Fatalf("expected channel error cleared, got %q", errs["flaky"])
	}
}

func TestDispatcher_DiagnosticsAppendedForWarningAndErrorLevels(t *testing.T) {
	registry := NewRegistry()
	cfg := config.NotifyConfig{
		Enabled:  true,
		Channels: []config.NotifyChannelEntry{mockEntry("a", true, nil)},
	}
	d := NewDispatcher(registry, cfg, store.NewMemoryEventStore(), eventbus.New())

	batteryCharge := 42.0
	d.Notify("PowerLost", "PowerLost", "utility power lost", map[string]interface{}{
		"status":               "OnBattery",
		"batteryChargePercent": batteryCharge,
	})

	mockChannel := mustMockChannel(t, d, "a")
	calls := mockChannel.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected exactly one Send call, got %d", len(calls))
	}
	if !containsAll(calls[0].Body, "diagnostics:", "UPS status: OnBattery", "battery charge: 42%") {
		t.Fatalf("expected diagnostics block appended to a warning-level body, got %q", calls[0].Body)
	}
}

func TestDispatcher_NoDiagnosticsForInfoLevel(t *testing.T) {
	registry := NewRegistry()
	cfg := config.NotifyConfig{
		Enabled:  true,
		Channels: []config.NotifyChannelEntry{mockEntry("a", true, nil)},
	}
	d := NewDispatcher(registry, cfg, store.NewMemoryEventStore(), eventbus.New())

	d.Notify("ShutdownCancelled", "ShutdownCancelled", "shutdown sequence cancelled", map[string]interface{}{"status": "Online"})

	mockChannel := mustMockChannel(t, d, "a")
	calls := mockChannel.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected exactly one Send call, got %d", len(calls))
	}
	if containsAll(calls[0].Body, "diagnostics:") {
		t.Fatalf("did not expect a diagnostics block on an info-level notification, got %q", calls[0].Body)
	}
}

func TestLevelForEvent(t *testing.T) {
	cases := map[string]Level{
		"PowerLost":          LevelWarning,
		"NutDisconnected":    LevelWarning,
		"LowBattery":         LevelError,
		"ShutdownExecuted":   LevelError,
		"ShutdownRequested":  LevelError,
		"HostShutdownFailed": LevelError,
		"PowerRestored":      LevelInfo,
		"ShutdownCancelled":  LevelInfo,
		"StartupDetection":   LevelInfo,
	}
	for kind, want := range cases {
		if got := LevelForEvent(kind); got != want {
			t.Errorf("LevelForEvent(%q) = %v, want %v", kind, got, want)
		}
	}
}

func mustMockChannel(t *testing.T, d *Dispatcher, id string) *channels.MockChannel {
	t.Helper()
	for _, entry := range d.channels {
		if entry.id == id {
			if mc, ok := entry.channel.(*channels.MockChannel); ok {
				return mc
			}
		}
	}
	t.Fatalf("mock channel %q not found in dispatcher", id)
	return nil
}

func containsAll(haystack string, needles ...string) bool {
	for _, n := range needles {
		if !strings.Contains(haystack, n) {
			return false
		}
	}
	return true
}
