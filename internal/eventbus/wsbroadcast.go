package eventbus

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/upsguard/upsguard/internal/ups"
	"github.com/upsguard/upsguard/pkg/logger"
	"go.uber.org/zap"
)

// WSBroadcaster fans every bus topic out to a set of WebSocket connections.
// It is an edge adapter for an API layer: the bus itself stays a
// synchronous in-process pub/sub, and nothing in the daemon's core imports
// this type — an API layer wires it up by calling Attach once per connected
// client.
type WSBroadcaster struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

func NewWSBroadcaster(bus *Bus) *WSBroadcaster {
	wb := &WSBroadcaster{conns: make(map[*websocket.Conn]struct{})}

	bus.OnSnapshotUpdated(func(s ups.Snapshot) { wb.broadcast("snapshot_updated", s) })
	bus.OnStatusChanged(func(c StatusChange) { wb.broadcast("status_changed", c) })
	bus.OnShutdownCountdown(func(t CountdownTick) { wb.broadcast("shutdown_countdown", t) })
	bus.OnHookProgress(func(p HookProgress) { wb.broadcast("hook_progress", p) })
	bus.OnDomainEvent(func(e DomainEvent) { wb.broadcast("domain_event", e) })

	return wb
}

// Attach registers a client connection to receive broadcasts.
func (wb *WSBroadcaster) Attach(conn *websocket.Conn) {
	wb.mu.Lock()
	defer wb.mu.Unlock()
	wb.conns[conn] = struct{}{}
}

// Detach removes a client connection, e.g. once its read loop exits.
func (wb *WSBroadcaster) Detach(conn *websocket.Conn) {
	wb.mu.Lock()
	defer wb.mu.Unlock()
	delete(wb.conns, conn)
}

func (wb *WSBroadcaster) broadcast(topic string, payload interface{}) {
	envelope := struct {
		Type string      `json:"type"`
		Data interface{} `json:"data"`
	}{Type: topic, Data: payload}

	data, err := json.Marshal(envelope)
	if err != nil {
		logger.Warn("failed to marshal broadcast envelope", zap.String("topic", topic), zap.Error(err))
		return
	}

	wb.mu.Lock()
	defer wb.mu.Unlock()
	for conn := range wb.conns {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			logger.Debug("dropping websocket client after write failure", zap.Error(err))
			delete(wb.conns, conn)
		}
	}
}
