// Package livestream implements the agent-facing live mutation channel
// (spec.md §4.8, §6 "GET /live"): a full snapshot on connect followed
// by one frame per committed mutation, in commit order. Grounded on
// the coder/websocket connection-manager pattern the teacher uses for
// its own event fan-out.
package livestream

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/uxplima/uxragent/internal/model"
)

// DefaultWriteTimeout bounds how long a single frame write may block.
const DefaultWriteTimeout = 5 * time.Second

// Frame is one message sent down a live connection.
type Frame struct {
	Type     string          `json:"type"`
	Revision uint64          `json:"revision,omitempty"`
	Snapshot []interface{}   `json:"snapshot,omitempty"`
	Changes  []model.Change  `json:"changes,omitempty"`
	Payload  interface{}     `json:"payload,omitempty"`
}

// SnapshotProvider supplies the full current projection used to seed a
// newly connected client (spec.md §4.8 "full_sync on connect").
type SnapshotProvider func() (revision uint64, payload []interface{})

// Manager tracks connected live-stream clients and broadcasts
// committed mutation batches to all of them, in commit order.
type Manager struct {
	mu           sync.RWMutex
	connections  map[string]*connection
	writeTimeout time.Duration
	snapshot     SnapshotProvider
}

type connection struct {
	id     string
	conn   *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a live-stream manager. snapshot is called once per new
// connection to build its initial full_sync frame.
func New(snapshot SnapshotProvider, writeTimeout time.Duration) *Manager {
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}
	return &Manager{
		connections:  make(map[string]*connection),
		writeTimeout: writeTimeout,
		snapshot:     snapshot,
	}
}

// HandleConnection owns a single live-stream connection end to end:
// register, send full_sync, block on the read loop (which exists only
// to detect client-initiated close/ping), then unregister. Blocks
// until the connection closes.
func (m *Manager) HandleConnection(parentCtx context.Context, conn *websocket.Conn) {
	id := uuid.New().String()
	ctx, cancel := context.WithCancel(parentCtx)
	c := &connection{id: id, conn: conn, ctx: ctx, cancel: cancel}

	m.register(c)
	defer m.unregister(c)

	rev, payload := m.snapshot()
	m.send(c, Frame{Type: "full_sync", Revision: rev, Snapshot: payload})

	for {
		if _, _, err := conn.Read(ctx); err != nil {
			return
		}
	}
}

// Broadcast sends one mutation frame to every connected client, in the
// order it is called — callers must invoke Broadcast in commit order
// and only after the mutation's lock has been released (spec.md §5:
// "broadcast happens after the lock is released, never under it").
func (m *Manager) Broadcast(changes []model.Change, revision uint64) {
	if len(changes) == 0 {
		return
	}
	frame := Frame{Type: "mutation", Revision: revision, Changes: changes}

	m.mu.RLock()
	conns := make([]*connection, 0, len(m.connections))
	for _, c := range m.connections {
		conns = append(conns, c)
	}
	m.mu.RUnlock()

	for _, c := range conns {
		m.send(c, frame)
	}
}

// FullSync rebroadcasts the current full snapshot to every connected
// client in place of per-mutation frames — used after a transactional
// batch commits, since the individual sub-command changes were never
// broadcast and a rolled-back batch must never leak (spec.md:143
// "full_sync for transactional batches; per-mutation events otherwise").
func (m *Manager) FullSync() {
	rev, payload := m.snapshot()
	frame := Frame{Type: "full_sync", Revision: rev, Snapshot: payload}

	m.mu.RLock()
	conns := make([]*connection, 0, len(m.connections))
	for _, c := range m.connections {
		conns = append(conns, c)
	}
	m.mu.RUnlock()

	for _, c := range conns {
		m.send(c, frame)
	}
}

// Dispatch broadcasts a non-mutation frame (e.g. a test-run
// dispatch/abort command) of the given type to every connected
// client, so the editor-side extension can receive it over the same
// channel used for mutation broadcast (spec.md §4.7: the orchestrator
// sends runs to the editor over the live-stream connection). Returns
// an error when there is no connected client to deliver to.
func (m *Manager) Dispatch(frameType string, payload interface{}) error {
	m.mu.RLock()
	conns := make([]*connection, 0, len(m.connections))
	for _, c := range m.connections {
		conns = append(conns, c)
	}
	m.mu.RUnlock()

	if len(conns) == 0 {
		return errors.New("no live-stream connections to dispatch to")
	}

	frame := Frame{Type: frameType, Payload: payload}
	for _, c := range conns {
		m.send(c, frame)
	}
	return nil
}

// ActiveConnections reports the number of connected live-stream clients.
func (m *Manager) ActiveConnections() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.connections)
}

func (m *Manager) register(c *connection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connections[c.id] = c
}

func (m *Manager) unregister(c *connection) {
	m.mu.Lock()
	delete(m.connections, c.id)
	m.mu.Unlock()

	c.cancel()
	_ = c.conn.Close(websocket.StatusNormalClosure, "")
}

func (m *Manager) send(c *connection, frame Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		slog.Warn("failed to marshal live-stream frame", "connection_id", c.id, "error", err)
		return
	}
	writeCtx, cancel := context.WithTimeout(c.ctx, m.writeTimeout)
	defer cancel()
	if err := c.conn.Write(writeCtx, websocket.MessageText, data); err != nil {
		slog.Warn("failed to write live-stream frame", "connection_id", c.id, "error", err)
	}
}
