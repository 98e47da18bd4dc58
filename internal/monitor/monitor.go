// Package monitor implements the long-running loop that owns the NUT
// client, samples telemetry, detects status transitions, drives reconnect
// backoff, and broadcasts snapshots.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/upsguard/upsguard/internal/config"
	"github.com/upsguard/upsguard/internal/eventbus"
	"github.com/upsguard/upsguard/internal/store"
	"github.com/upsguard/upsguard/internal/ups"
	"github.com/upsguard/upsguard/pkg/logger"
	"go.uber.org/zap"
)

// PowerEdgeHandler is the shutdown manager's decision surface, called on
// the edge between power-present and power-absent states.
type PowerEdgeHandler interface {
	OnPowerLost(snapshot ups.Snapshot)
	OnPowerRestored()
	UpdateSnapshot(snapshot ups.Snapshot)
}

const latencyWindowSize = 100

// Monitor is the single long-running loop that owns the NUT client, samples
// telemetry, detects status transitions, drives reconnect backoff, and
// broadcasts snapshots.
type Monitor struct {
	client *ups.Client
	cfg    config.MonitorConfig
	upsCfg config.NUTConfig

	bus     *eventbus.Bus
	events  store.EventStore
	metrics store.MetricStore
	daily   store.DailyStatsStore
	edge    PowerEdgeHandler

	testMode string

	mu                 sync.Mutex
	previousStatus     ups.Status
	hasPrevious        bool
	lastSnapshot       ups.Snapshot
	hasSnapshot        bool
	connectionNotified bool
	reconnectAttempt   int
	startupLogged      bool

	latencies    []float64
	commCount    int
	currentDate  string
	startedAt    time.Time
	lastSampleAt time.Time

	listenActive bool
}

// NewMonitor constructs a Monitor. edge may be nil in tests that only care
// about snapshot/connection behavior.
func NewMonitor(client *ups.Client, cfg config.MonitorConfig, upsCfg config.NUTConfig, bus *eventbus.Bus, events store.EventStore, metrics store.MetricStore, daily store.DailyStatsStore, edge PowerEdgeHandler, testMode string) *Monitor {
	return &Monitor{
		client:      client,
		cfg:         cfg,
		upsCfg:      upsCfg,
		bus:         bus,
		events:      events,
		metrics:     metrics,
		daily:       daily,
		edge:        edge,
		testMode:    testMode,
		currentDate: time.Now().Format("2006-01-02"),
		startedAt:   time.Now(),
	}
}

// Run is the monitor's steady-state loop. It blocks until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	m.initialConnect(ctx)

	logger.Info("ups monitor started",
		zap.String("nutHost", m.upsCfg.Host),
		zap.Int("nutPort", m.upsCfg.Port),
		zap.String("mode", string(m.cfg.MonitoringMode)))

	// First read happens immediately so a pre-existing outage is reported
	// at startup, not one poll interval later.
	m.tick()

	mode := m.cfg.MonitoringMode
	pollInterval := time.Duration(m.cfg.PollIntervalSeconds) * time.Second
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}

	if mode == config.ModeEventDriven || mode == config.ModeHybrid || m.cfg.EventDrivenEnabled {
		if m.tryStartListen(ctx) {
			pollInterval = time.Duration(m.cfg.PollIntervalFallbackSeconds) * time.Second
			if pollInterval <= 0 {
				pollInterval = 60 * time.Second
			}
		} else if !m.cfg.EventDrivenFallback {
			logger.Error("event-driven mode unavailable and fallback disabled")
		}
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.tick()
		}
	}
}

func (m *Monitor) tryStartListen(ctx context.Context) bool {
	upsName, err := m.client.Discover()
	if err != nil {
		logger.Warn("event-driven mode: discovery failed, staying on polling", zap.Error(err))
		return false
	}

	heartbeat := time.Duration(m.cfg.EventDrivenHeartbeatSeconds) * time.Second
	ok, err := m.client.StartListen(ctx, upsName, heartbeat, func() {
		m.tick()
	}, func(err error) {
		logger.Warn("event-driven listen mode failed, falling back to polling", zap.Error(err))
		m.mu.Lock()
		m.listenActive = false
		m.mu.Unlock()
	})
	if err != nil || !ok {
		return false
	}

	m.mu.Lock()
	m.listenActive = true
	m.mu.Unlock()
	return true
}

// initialConnect attempts the capped-exponential-backoff initial connect
// (up to 5 attempts, delay = min(2^attempt, 30)s). The monitor enters its
// steady loop regardless of outcome.
func (m *Monitor) initialConnect(ctx context.Context) {
	const maxAttempts = 5
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := m.client.Connect(ctx); err == nil {
			logger.Info("nut client connected")
			return
		} else if attempt == maxAttempts-1 {
			logger.Warn("initial nut connect exhausted retries, continuing into steady loop", zap.Error(err))
			return
		}
		delay := time.Duration(minInt(1<<attempt, 30)) * time.Second
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// tick performs one per-tick action: a LIST VAR read, parse, transition
// detection, sampling, and daily rollover.
func (m *Monitor) tick() {
	upsName, err := m.client.Discover()
	if err != nil {
		m.handleEmptyRead()
		return
	}

	start := time.Now()
	vars, err := m.client.ListVar(upsName)
	latencyMs := float64(time.Since(start).Microseconds()) / 1000.0

	if err != nil || len(vars) == 0 {
		m.handleEmptyRead()
		return
	}

	m.recordLatency(latencyMs)
	m.maybeRolloverDaily()

	snapshot := ups.ParseSnapshot(vars, m.client.Status().ReconnectAttempts)

	// The reconnect counter resets here, on a successful read, not on the
	// mere TCP connect inside scheduleReconnect.
	m.mu.Lock()
	wasNotified := m.connectionNotified
	m.connectionNotified = false
	m.reconnectAttempt = 0
	m.mu.Unlock()
	if wasNotified {
		m.emitDomainEvent("NutReconnected", "nut connection restored", nil)
	}

	m.handleStatusTransition(snapshot)

	m.mu.Lock()
	m.lastSnapshot = snapshot
	m.hasSnapshot = true
	m.mu.Unlock()

	if m.bus != nil {
		m.bus.PublishSnapshotUpdated(snapshot)
	}
	if m.edge != nil {
		m.edge.UpdateSnapshot(snapshot)
	}

	m.maybeSample(snapshot)
}

// handleStatusTransition compares the new status to the previous one,
// handles the startup probe, and invokes the shutdown manager's edge
// handlers.
func (m *Monitor) handleStatusTransition(snapshot ups.Snapshot) {
	m.mu.Lock()
	previous := m.previousStatus
	hadPrevious := m.hasPrevious
	startupDone := m.startupLogged
	m.previousStatus = snapshot.Status
	m.hasPrevious = true
	m.startupLogged = true
	m.mu.Unlock()

	if !startupDone && !hadPrevious {
		switch snapshot.Status {
		case ups.StatusOnBattery, ups.StatusLowBattery, ups.StatusOffline:
			m.emitDomainEvent("StartupDetection", fmt.Sprintf("startup detected pre-existing %s state", snapshot.Status), map[string]interface{}{
				"status": string(snapshot.Status), "trigger": "startup_detection",
			})
		}
	}

	if !hadPrevious || previous == snapshot.Status {
		return
	}

	if m.bus != nil {
		m.bus.PublishStatusChanged(eventbus.StatusChange{Previous: previous, Current: snapshot.Status, Snapshot: snapshot})
	}
	m.emitDomainEvent("StatusChanged", fmt.Sprintf("status changed from %s to %s", previous, snapshot.Status), map[string]interface{}{
		"previous": string(previous), "current": string(snapshot.Status),
	})

	if m.edge == nil {
		return
	}

	wasPresent := previous.IsPowerPresent()
	isPresent := snapshot.Status.IsPowerPresent()
	switch {
	case wasPresent && !isPresent:
		m.edge.OnPowerLost(snapshot)
	case !wasPresent && isPresent:
		m.edge.OnPowerRestored()
	}
}

// handleEmptyRead treats an empty/failed read as a connection loss, guarded
// by the connectionNotified latch against flapping floods.
func (m *Monitor) handleEmptyRead() {
	m.mu.Lock()
	alreadyNotified := m.connectionNotified
	m.connectionNotified = true
	attempt := m.reconnectAttempt
	m.reconnectAttempt++
	m.previousStatus = ups.StatusOffline
	m.hasPrevious = true
	m.mu.Unlock()

	if !alreadyNotified {
		m.emitDomainEvent("NutDisconnected", "nut connection lost", nil)
	}

	interval := 5 * time.Second
	if attempt < 5 {
		interval = time.Duration(attempt+1) * 5 * time.Second
	} else {
		interval = 60 * time.Second
	}
	go m.scheduleReconnect(interval)
}

func (m *Monitor) scheduleReconnect(after time.Duration) {
	time.Sleep(after)
	if err := m.client.Connect(context.Background()); err != nil {
		logger.Warn("reconnect attempt failed", zap.Error(err))
	}
}

func (m *Monitor) recordLatency(ms float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commCount++
	m.latencies = append(m.latencies, ms)
	if len(m.latencies) > latencyWindowSize {
		m.latencies = m.latencies[len(m.latencies)-latencyWindowSize:]
	}
}

// maybeSample persists a metric row at the configured sample cadence, a
// coarser interval than the polling tick.
func (m *Monitor) maybeSample(snapshot ups.Snapshot) {
	if m.metrics == nil {
		return
	}

	interval := time.Duration(m.cfg.SampleIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 60 * time.Second
	}
	m.mu.Lock()
	if !m.lastSampleAt.IsZero() && time.Since(m.lastSampleAt) < interval {
		m.mu.Unlock()
		return
	}
	m.lastSampleAt = time.Now()
	m.mu.Unlock()

	sample := store.MetricSample{
		Status:               string(snapshot.Status),
		BatteryChargePercent: snapshot.BatteryChargePercent,
		BatteryRuntimeSec:    snapshot.BatteryRuntimeSec,
		InputVoltage:         snapshot.InputVoltage,
		OutputVoltage:        snapshot.OutputVoltage,
		LoadPercent:          snapshot.LoadPercent,
		UPSTemperature:       snapshot.UPSTemperature,
		CapturedAt:           snapshot.CapturedAt,
	}
	if err := m.metrics.Append(sample, m.testMode); err != nil {
		logger.Warn("failed to persist metric sample", zap.Error(err))
	}
}

// maybeRolloverDaily persists the prior day's aggregate stats and resets the
// latency window when the wall-clock date has changed.
func (m *Monitor) maybeRolloverDaily() {
	today := time.Now().Format("2006-01-02")

	m.mu.Lock()
	if m.currentDate == today {
		m.mu.Unlock()
		return
	}
	priorDate := m.currentDate
	latencies := append([]float64{}, m.latencies...)
	commCount := m.commCount
	uptime := int64(time.Since(m.startedAt).Seconds())
	m.currentDate = today
	m.latencies = nil
	m.commCount = 0
	m.mu.Unlock()

	if m.daily == nil {
		return
	}

	minMs, avgMs, maxMs := summarizeLatencies(latencies)
	mode := string(m.cfg.MonitoringMode)
	eventActive := m.cfg.MonitoringMode == config.ModeEventDriven || m.cfg.MonitoringMode == config.ModeHybrid

	if err := m.daily.Upsert(priorDate, mode, eventActive, commCount, minMs, avgMs, maxMs, uptime); err != nil {
		logger.Warn("failed to persist daily stats rollup", zap.Error(err))
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func summarizeLatencies(samples []float64) (min, avg, max float64) {
	if len(samples) == 0 {
		return 0, 0, 0
	}
	min, max = samples[0], samples[0]
	var sum float64
	for _, v := range samples {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
		sum += v
	}
	return min, sum / float64(len(samples)), max
}

// LatestSnapshot returns the most recently parsed snapshot, for status
// reporting by the upsguardctl companion. ok is false before the first
// successful read.
func (m *Monitor) LatestSnapshot() (ups.Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSnapshot, m.hasSnapshot
}

func (m *Monitor) emitDomainEvent(kind, message string, meta map[string]interface{}) {
	if m.events != nil {
		if err := m.events.Append(kind, message, meta, m.testMode); err != nil {
			logger.Warn("failed to append monitor domain event", zap.String("kind", kind), zap.Error(err))
		}
	}
	if m.bus != nil {
		m.bus.PublishDomainEvent(eventbus.DomainEvent{Kind: kind, Message: message, Meta: meta})
	}
}
