package shutdown

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/upsguard/upsguard/internal/config"
	"github.com/upsguard/upsguard/internal/eventbus"
	"github.com/upsguard/upsguard/internal/hooks"
	"github.com/upsguard/upsguard/internal/store"
	"github.com/upsguard/upsguard/internal/ups"
	"github.com/upsguard/upsguard/pkg/logger"
	"go.uber.org/zap"
)

type stopReason int

const (
	reasonNone stopReason = iota
	reasonCancel
	reasonRestore
)

// Manager is the state machine deciding whether and when power loss
// justifies a shutdown. Its transitions are the only mutators of phase; the
// countdown runs in a goroutine driven by the state machine, not the other
// way around.
type Manager struct {
	mu sync.Mutex

	phase                 Phase
	cancelledUntilRestore bool
	sequenceActive        bool
	stopReason            stopReason

	powerLostTime       *time.Time
	waitStart           time.Time
	finalCountdownStart time.Time

	seqCancel context.CancelFunc

	latestSnapshot ups.Snapshot
	hasSnapshot    bool

	cfg       config.ShutdownConfig
	hookSpecs []hooks.Spec

	registry *hooks.Registry
	host     HostShutdown
	bus      *eventbus.Bus
	events   store.EventStore
}

// NewManager constructs a Manager in the Idle phase.
func NewManager(cfg config.ShutdownConfig, hookSpecs []hooks.Spec, registry *hooks.Registry, host HostShutdown, bus *eventbus.Bus, events store.EventStore) *Manager {
	return &Manager{
		phase:     PhaseIdle,
		cfg:       cfg,
		hookSpecs: hookSpecs,
		registry:  registry,
		host:      host,
		bus:       bus,
		events:    events,
	}
}

// SetHookSpecs rebinds the configured pre-shutdown hook list, used when the
// config store reports a change without requiring a daemon restart.
func (m *Manager) SetHookSpecs(specs []hooks.Spec) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hookSpecs = specs
}

// UpdateSnapshot records the latest UPS telemetry so the wait loop can
// re-evaluate the runtime-triggered fast path without waiting on the next
// on_power_lost edge.
func (m *Manager) UpdateSnapshot(s ups.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latestSnapshot = s
	m.hasSnapshot = true
}

// OnPowerLost starts a countdown on the edge from power-present to
// power-absent, unless the cancelled-until-restore latch is set or a
// sequence is already running.
func (m *Manager) OnPowerLost(snapshot ups.Snapshot) {
	m.mu.Lock()
	if m.cancelledUntilRestore || m.sequenceActive {
		m.latestSnapshot = snapshot
		m.hasSnapshot = true
		m.mu.Unlock()
		return
	}

	now := time.Now()
	m.sequenceActive = true
	m.stopReason = reasonNone
	m.powerLostTime = &now
	m.latestSnapshot = snapshot
	m.hasSnapshot = true
	m.phase = PhaseWaiting
	m.waitStart = now

	ctx, cancel := context.WithCancel(context.Background())
	m.seqCancel = cancel
	m.mu.Unlock()

	m.emit("PowerLost", "utility power lost", snapshotMeta(snapshot))
	go m.runSequence(ctx, false)
}

// OnPowerRestored clears the cancelled-until-restore latch. If a sequence is
// running it cancels it, and the sequence's teardown returns the manager to
// Idle and emits PowerRestored. With no sequence running the phase is left
// as it is, and PowerRestored is emitted only if the latch was set.
func (m *Manager) OnPowerRestored() {
	m.mu.Lock()
	wasLatched := m.cancelledUntilRestore
	active := m.sequenceActive
	m.cancelledUntilRestore = false

	if active {
		m.stopReason = reasonRestore
		cancel := m.seqCancel
		m.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		return
	}
	m.mu.Unlock()

	if wasLatched {
		m.emit("PowerRestored", "utility power restored", nil)
	}
}

// RequestCancel honors a cancel request in Waiting, FinalCountdown, and
// ExecutingHooks; ShuttingDownHost is past the point of no return.
func (m *Manager) RequestCancel() (bool, string) {
	m.mu.Lock()
	switch m.phase {
	case PhaseShuttingDownHost:
		m.mu.Unlock()
		return false, "not cancellable"
	case PhaseIdle, PhaseCompleted:
		m.mu.Unlock()
		return false, "no active shutdown sequence"
	}

	m.stopReason = reasonCancel
	cancel := m.seqCancel
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return true, ""
}

// RequestImmediateShutdown skips the wait entirely and runs the same
// hooks/host-shutdown pipeline, honoring the same cancellation rules.
func (m *Manager) RequestImmediateShutdown() error {
	m.mu.Lock()
	if m.sequenceActive {
		m.mu.Unlock()
		return fmt.Errorf("shutdown sequence already active")
	}

	now := time.Now()
	m.sequenceActive = true
	m.stopReason = reasonNone
	m.cancelledUntilRestore = false
	m.powerLostTime = &now
	m.phase = PhaseWaiting
	m.waitStart = now

	ctx, cancel := context.WithCancel(context.Background())
	m.seqCancel = cancel
	m.mu.Unlock()

	m.emit("ShutdownRequested", "immediate shutdown requested", nil)
	go m.runSequence(ctx, true)
	return nil
}

// Status reports the manager's current phase and countdown progress.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	var elapsed, remaining float64
	switch m.phase {
	case PhaseWaiting:
		elapsed = now.Sub(m.waitStart).Seconds()
		remaining = float64(m.cfg.ShutdownWaitMinutes*60) - elapsed
	case PhaseFinalCountdown:
		elapsed = now.Sub(m.finalCountdownStart).Seconds()
		remaining = float64(m.cfg.ShutdownFinalWaitSeconds) - elapsed
	}
	if remaining < 0 {
		remaining = 0
	}

	return Status{
		Phase:            m.phase,
		PowerLostTime:    m.powerLostTime,
		ElapsedSeconds:   elapsed,
		RemainingSeconds: remaining,
		InFinalCountdown: m.phase == PhaseFinalCountdown,
	}
}

// runSequence drives one shutdown sequence end to end: the long wait (unless
// immediate), the final countdown, hook execution, and the host shutdown
// call, honoring cancellation at every checkpoint.
func (m *Manager) runSequence(ctx context.Context, immediate bool) {
	reason := "timeout"

	if !immediate {
		var cancelled bool
		reason, cancelled = m.waitForPowerOrTimeout(ctx)
		if cancelled {
			m.finishCancelledOrRestored()
			return
		}
	} else {
		reason = "immediate"
	}

	if cancelled := m.runFinalCountdown(ctx); cancelled {
		m.finishCancelledOrRestored()
		return
	}

	m.setPhase(PhaseExecutingHooks)

	specs := m.currentHookSpecs()
	dryRun := m.cfg.TestMode == config.TestModeDryRun
	executor := hooks.NewExecutor(m.registry, dryRun, func(p eventbus.HookProgress) {
		if m.bus != nil {
			m.bus.PublishHookProgress(p)
		}
	}, func() bool { return ctx.Err() != nil })

	result := executor.ExecuteAll(specs)

	if ctx.Err() != nil {
		m.finishCancelledOrRestored()
		return
	}

	m.emit("HooksExecuted", fmt.Sprintf("pre-shutdown hooks complete: %d/%d succeeded", result.Success, result.Total), map[string]interface{}{
		"total": result.Total, "success": result.Success, "failed": result.Failed, "skipped": result.Skipped, "reason": reason,
	})

	if !m.enterHostShutdown(ctx) {
		m.finishCancelledOrRestored()
		return
	}

	if m.cfg.TestMode == config.TestModeDryRun {
		m.emit("ShutdownExecuted", "dry run: host shutdown skipped", map[string]interface{}{"dryRun": true})
		m.finishCompleted()
		return
	}

	if err := m.host.Shutdown(); err != nil {
		logger.Error("host shutdown command failed", zap.Error(err))
		m.emit("HostShutdownFailed", err.Error(), nil)
		m.mu.Lock()
		m.phase = PhaseIdle
		m.sequenceActive = false
		m.powerLostTime = nil
		m.seqCancel = nil
		m.mu.Unlock()
		return
	}

	m.emit("ShutdownExecuted", "host shutdown issued", map[string]interface{}{"dryRun": false})
	m.finishCompleted()
}

// waitForPowerOrTimeout runs the long wait: 1-second ticks broadcasting
// countdown progress, evaluating the runtime-triggered fast path every 5
// seconds, cancellable at every tick. Low battery percent alone never
// breaks the wait — a UPS with a big battery and a low reported percent may
// still have abundant runtime.
func (m *Manager) waitForPowerOrTimeout(ctx context.Context) (reason string, cancelled bool) {
	totalSeconds := m.cfg.ShutdownWaitMinutes * 60
	for elapsed := 0; elapsed < totalSeconds; elapsed++ {
		select {
		case <-ctx.Done():
			return "", true
		case <-time.After(time.Second):
		}

		remaining := totalSeconds - elapsed - 1
		if m.bus != nil {
			m.bus.PublishShutdownCountdown(eventbus.CountdownTick{RemainingSeconds: remaining, InFinalCountdown: false})
		}

		if (elapsed+1)%5 == 0 && m.batteryRuntimeLow() {
			return "low_runtime", false
		}
	}
	return "timeout", false
}

// runFinalCountdown runs the fixed grace window, 1-second ticks,
// cancellable at every tick. A zero-length window skips straight through.
func (m *Manager) runFinalCountdown(ctx context.Context) (cancelled bool) {
	m.mu.Lock()
	m.phase = PhaseFinalCountdown
	m.finalCountdownStart = time.Now()
	m.mu.Unlock()

	total := m.cfg.ShutdownFinalWaitSeconds
	for remaining := total; remaining > 0; remaining-- {
		select {
		case <-ctx.Done():
			return true
		case <-time.After(time.Second):
		}
		if m.bus != nil {
			m.bus.PublishShutdownCountdown(eventbus.CountdownTick{RemainingSeconds: remaining - 1, InFinalCountdown: true})
		}
	}
	return false
}

// finishCancelledOrRestored tears a sequence down after cancellation,
// emitting ShutdownCancelled or PowerRestored depending on why it stopped.
func (m *Manager) finishCancelledOrRestored() {
	m.mu.Lock()
	reason := m.stopReason
	m.phase = PhaseIdle
	m.sequenceActive = false
	m.powerLostTime = nil
	m.seqCancel = nil
	if reason == reasonCancel {
		m.cancelledUntilRestore = true
	}
	m.mu.Unlock()

	switch reason {
	case reasonCancel:
		m.emit("ShutdownCancelled", "shutdown sequence cancelled", nil)
	case reasonRestore:
		m.emit("PowerRestored", "utility power restored", nil)
	}
}

func (m *Manager) finishCompleted() {
	m.mu.Lock()
	m.phase = PhaseCompleted
	m.sequenceActive = false
	m.seqCancel = nil
	m.mu.Unlock()
}

func (m *Manager) setPhase(p Phase) {
	m.mu.Lock()
	m.phase = p
	m.mu.Unlock()
}

// enterHostShutdown flips the phase to ShuttingDownHost unless a cancel or
// restore landed first. The check and the transition happen under the same
// lock RequestCancel uses to read the phase, so a cancel accepted while the
// phase still read ExecutingHooks can never be followed by the host going
// down: whichever side takes the lock first wins, and the loser sees it.
func (m *Manager) enterHostShutdown(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ctx.Err() != nil || m.stopReason != reasonNone {
		return false
	}
	m.phase = PhaseShuttingDownHost
	return true
}

// HookSpecs returns a copy of the currently configured pre-shutdown hooks,
// used by upsguardctl's test-hook command to resolve a hook ID to its spec.
func (m *Manager) HookSpecs() []hooks.Spec {
	return m.currentHookSpecs()
}

func (m *Manager) currentHookSpecs() []hooks.Spec {
	m.mu.Lock()
	defer m.mu.Unlock()
	specs := make([]hooks.Spec, len(m.hookSpecs))
	copy(specs, m.hookSpecs)
	return specs
}

func (m *Manager) batteryRuntimeLow() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.hasSnapshot || m.latestSnapshot.BatteryRuntimeSec == nil {
		return false
	}
	threshold := float64(m.cfg.EstimatedRuntimeThresholdMinutes * 60)
	return *m.latestSnapshot.BatteryRuntimeSec <= threshold
}

func (m *Manager) emit(kind, message string, meta map[string]interface{}) {
	if m.events != nil {
		testMode := string(m.cfg.TestMode)
		if err := m.events.Append(kind, message, meta, testMode); err != nil {
			logger.Warn("failed to append shutdown domain event", zap.String("kind", kind), zap.Error(err))
		}
	}
	if m.bus != nil {
		m.bus.PublishDomainEvent(eventbus.DomainEvent{Kind: kind, Message: message, Meta: meta})
	}
}

func snapshotMeta(s ups.Snapshot) map[string]interface{} {
	meta := map[string]interface{}{"status": string(s.Status)}
	if s.BatteryChargePercent != nil {
		meta["batteryChargePercent"] = *s.BatteryChargePercent
	}
	if s.BatteryRuntimeSec != nil {
		meta["batteryRuntimeSec"] = *s.BatteryRuntimeSec
	}
	return meta
}
