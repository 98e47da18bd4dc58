package monitor

import (
	"testing"

	"github.com/upsguard/upsguard/internal/config"
	"github.com/upsguard/upsguard/internal/eventbus"
	"github.com/upsguard/upsguard/internal/store"
	"github.com/upsguard/upsguard/internal/ups"
)

// fakeEdge records the PowerEdgeHandler calls a Monitor makes on a status
// transition, standing in for shutdown.Manager in these unit tests.
type fakeEdge struct {
	powerLostCalls     int
	powerRestoredCalls int
	lastSnapshot       ups.Snapshot
	updateCalls        int
}

func (f *fakeEdge) OnPowerLost(snapshot ups.Snapshot) {
	f.powerLostCalls++
	f.lastSnapshot = snapshot
}

func (f *fakeEdge) OnPowerRestored() {
	f.powerRestoredCalls++
}

func (f *fakeEdge) UpdateSnapshot(snapshot ups.Snapshot) {
	f.updateCalls++
}

func newTestMonitor(edge PowerEdgeHandler, bus *eventbus.Bus, events store.EventStore) *Monitor {
	return NewMonitor(nil, config.MonitorConfig{}, config.NUTConfig{}, bus, events, nil, nil, edge, "mock")
}

func TestMonitor_FirstReadHasNoEdgeTransition(t *testing.T) {
	edge := &fakeEdge{}
	m := newTestMonitor(edge, eventbus.New(), nil)

	m.handleStatusTransition(ups.Snapshot{Status: ups.StatusOnline})

	if edge.powerLostCalls != 0 || edge.powerRestoredCalls != 0 {
		t.Fatalf("expected no edge calls on the very first observed status, got %+v", edge)
	}
}

func TestMonitor_StartupDetectionEmittedForPreExistingOutage(t *testing.T) {
	var captured []eventbus.DomainEvent
	bus := eventbus.New()
	bus.OnDomainEvent(func(e eventbus.DomainEvent) { captured = append(captured, e) })

	m := newTestMonitor(&fakeEdge{}, bus, store.NewMemoryEventStore())
	m.handleStatusTransition(ups.Snapshot{Status: ups.StatusOnBattery})

	found := false
	for _, e := range captured {
		if e.Kind == "StartupDetection" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a StartupDetection event when the first observed status is already abnormal, got %+v", captured)
	}
}

func TestMonitor_NoStartupDetectionWhenFirstReadIsOnline(t *testing.T) {
	var captured []eventbus.DomainEvent
	bus := eventbus.New()
	bus.OnDomainEvent(func(e eventbus.DomainEvent) { captured = append(captured, e) })

	m := newTestMonitor(&fakeEdge{}, bus, store.NewMemoryEventStore())
	m.handleStatusTransition(ups.Snapshot{Status: ups.StatusOnline})

	for _, e := range captured {
		if e.Kind == "StartupDetection" {
			t.Fatalf("did not expect StartupDetection when the first observed status is Online")
		}
	}
}

func TestMonitor_PowerLostEdgeOnOnlineToOnBattery(t *testing.T) {
	edge := &fakeEdge{}
	m := newTestMonitor(edge, eventbus.New(), nil)

	m.handleStatusTransition(ups.Snapshot{Status: ups.StatusOnline})
	m.handleStatusTransition(ups.Snapshot{Status: ups.StatusOnBattery})

	if edge.powerLostCalls != 1 {
		t.Fatalf("expected exactly one OnPowerLost call, got %d", edge.powerLostCalls)
	}
	if edge.powerRestoredCalls != 0 {
		t.Fatalf("did not expect OnPowerRestored, got %d", edge.powerRestoredCalls)
	}
}

func TestMonitor_PowerRestoredEdgeOnOnBatteryToOnline(t *testing.T) {
	edge := &fakeEdge{}
	m := newTestMonitor(edge, eventbus.New(), nil)

	m.handleStatusTransition(ups.Snapshot{Status: ups.StatusOnBattery})
	m.handleStatusTransition(ups.Snapshot{Status: ups.StatusOnline})

	if edge.powerRestoredCalls != 1 {
		t.Fatalf("expected exactly one OnPowerRestored call, got %d", edge.powerRestoredCalls)
	}
}

func TestMonitor_SameStatusTwiceNoEdgeOrDomainEvent(t *testing.T) {
	var captured []eventbus.DomainEvent
	bus := eventbus.New()
	bus.OnDomainEvent(func(e eventbus.DomainEvent) { captured = append(captured, e) })
	edge := &fakeEdge{}

	m := newTestMonitor(edge, bus, store.NewMemoryEventStore())
	m.handleStatusTransition(ups.Snapshot{Status: ups.StatusOnBattery})
	captured = nil // discard the startup-detection event from the first read
	m.handleStatusTransition(ups.Snapshot{Status: ups.StatusOnBattery})

	if edge.powerLostCalls != 0 || edge.powerRestoredCalls != 0 {
		t.Fatalf("expected no edge calls on a repeated status, got %+v", edge)
	}
	for _, e := range captured {
		if e.Kind == "StatusChanged" {
			t.Fatalf("did not expect a StatusChanged event for an unchanged status")
		}
	}
}

func TestMonitor_OnBatteryToLowBatteryIsNotAPowerEdge(t *testing.T) {
	// both are power-absent states; only OL<->non-OL transitions are edges.
	edge := &fakeEdge{}
	m := newTestMonitor(edge, eventbus.New(), nil)

	m.handleStatusTransition(ups.Snapshot{Status: ups.StatusOnBattery})
	m.handleStatusTransition(ups.Snapshot{Status: ups.StatusLowBattery})

	if edge.powerLostCalls != 0 || edge.powerRestoredCalls != 0 {
		t.Fatalf("expected no power edge between two power-absent states, got %+v", edge)
	}
}

func TestMonitor_RecordLatencyTrimsToWindowSize(t *testing.T) {
	m := newTestMonitor(&fakeEdge{}, eventbus.New(), nil)

	for i := 0; i < latencyWindowSize+25; i++ {
		m.recordLatency(1.0)
	}

	if len(m.latencies) != latencyWindowSize {
		t.Fatalf("expected latency window capped at %d, got %d", latencyWindowSize, len(m.latencies))
	}
	if m.commCount != latencyWindowSize+25 {
		t.Fatalf("expected commCount to keep counting past the window cap, got %d", m.commCount)
	}
}

func TestMonitor_LatestSnapshotAbsentBeforeFirstTick(t *testing.T) {
	m := newTestMonitor(&fakeEdge{}, eventbus.New(), nil)

	_, ok := m.LatestSnapshot()
	if ok {
		t.Fatalf("expected hasSnapshot to be false before any tick runs")
	}
}

func TestMonitor_DailyRolloverPersistsPriorDayAndResetsWindow(t *testing.T) {
	daily := store.NewMemoryDailyStatsStore()
	m := newTestMonitor(&fakeEdge{}, eventbus.New(), nil)
	m.daily = daily
	m.cfg = config.MonitorConfig{MonitoringMode: config.ModePolling}

	m.recordLatency(10)
	m.recordLatency(20)
	m.currentDate = "2020-01-01" // force the next rollover check to see a date change

	m.maybeRolloverDaily()

	rows := daily.Rows()
	if len(rows) != 1 {
		t.Fatalf("expected one rolled-up day, got %d", len(rows))
	}
	if rows[0].Date != "2020-01-01" {
		t.Fatalf("expected the rollup to be stamped with the prior date, got %s", rows[0].Date)
	}
	if rows[0].CommCount != 2 {
		t.Fatalf("expected comm count 2, got %d", rows[0].CommCount)
	}
	if len(m.latencies) != 0 || m.commCount != 0 {
		t.Fatalf("expected the latency window to reset after rollover, got latencies=%v commCount=%d", m.latencies, m.commCount)
	}
}
