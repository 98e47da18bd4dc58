// Package eventbus implements a small in-process publish/subscribe surface
// with typed topics. Subscribers are registered at startup; delivery is
// synchronous in publish order, so a subscriber sees events in the order
// the publisher produced them.
package eventbus

import (
	"sync"

	"github.com/upsguard/upsguard/internal/ups"
)

// StatusChange describes a UpsStatus transition, carried on the
// status_changed topic.
type StatusChange struct {
	Previous ups.Status
	Current  ups.Status
	Snapshot ups.Snapshot
}

// CountdownTick is one second-resolution shutdown_countdown broadcast.
type CountdownTick struct {
	RemainingSeconds int
	InFinalCountdown bool
}

// HookProgress is one hook_progress broadcast.
type HookProgress struct {
	HookName string
	HookID   string
	Status   string // pending|executing|retrying|success|failed|skipped
	Priority int
	Duration float64
	Error    string
	Progress HookProgressCounters
}

type HookProgressCounters struct {
	Total     int
	Completed int
}

// DomainEvent is a durable, user-visible occurrence (PowerLost, Shutdown,
// NutDisconnected, ...), the payload persisted via the events store and
// published on the domain_event topic.
type DomainEvent struct {
	Kind    string
	Message string
	Meta    map[string]interface{}
}

// Bus is the typed pub/sub surface. Zero value is ready to use.
type Bus struct {
	mu sync.RWMutex

	snapshotSubs     []func(ups.Snapshot)
	statusSubs       []func(StatusChange)
	countdownSubs    []func(CountdownTick)
	hookProgressSubs []func(HookProgress)
	domainEventSubs  []func(DomainEvent)
}

func New() *Bus {
	return &Bus{}
}

func (b *Bus) OnSnapshotUpdated(fn func(ups.Snapshot)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snapshotSubs = append(b.snapshotSubs, fn)
}

func (b *Bus) OnStatusChanged(fn func(StatusChange)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.statusSubs = append(b.statusSubs, fn)
}

func (b *Bus) OnShutdownCountdown(fn func(CountdownTick)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.countdownSubs = append(b.countdownSubs, fn)
}

func (b *Bus) OnHookProgress(fn func(HookProgress)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hookProgressSubs = append(b.hookProgressSubs, fn)
}

func (b *Bus) OnDomainEvent(fn func(DomainEvent)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.domainEventSubs = append(b.domainEventSubs, fn)
}

func (b *Bus) PublishSnapshotUpdated(s ups.Snapshot) {
	b.mu.RLock()
	subs := append([]func(ups.Snapshot){}, b.snapshotSubs...)
	b.mu.RUnlock()
	for _, fn := range subs {
		fn(s)
	}
}

func (b *Bus) PublishStatusChanged(c StatusChange) {
	b.mu.RLock()
	subs := append([]func(StatusChange){}, b.statusSubs...)
	b.mu.RUnlock()
	for _, fn := range subs {
		fn(c)
	}
}

func (b *Bus) PublishShutdownCountdown(t CountdownTick) {
	b.mu.RLock()
	subs := append([]func(CountdownTick){}, b.countdownSubs...)
	b.mu.RUnlock()
	for _, fn := range subs {
		fn(t)
	}
}

func (b *Bus) PublishHookProgress(p HookProgress) {
	b.mu.RLock()
	subs := append([]func(HookProgress){}, b.hookProgressSubs...)
	b.mu.RUnlock()
	for _, fn := range subs {
		fn(p)
	}
}

func (b *Bus) PublishDomainEvent(e DomainEvent) {
	b.mu.RLock()
	subs := append([]func(DomainEvent){}, b.domainEventSubs...)
	b.mu.RUnlock()
	for _, fn := range subs {
		fn(e)
	}
}
