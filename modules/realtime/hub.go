// Package realtime is the chat and presence session manager behind the WebSocket endpoint.
package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/go-monolith/mono/pkg/types"
)

// Conn is one live client connection. Send must be safe for concurrent use.
type Conn interface {
	ID() string
	Send(frame []byte) error
	Close() error
}

// Hub tracks connections and room membership and fans frames out to them.
type Hub struct {
	mu     sync.RWMutex
	conns  map[string]Conn                // connID -> Conn
	rooms  map[string]map[string]struct{} // room -> set of connIDs
	joined map[string]map[string]struct{} // connID -> set of rooms
	logger types.Logger
	done   chan struct{}
}

// NewHub creates an empty Hub.
func NewHub(logger types.Logger) *Hub {
	return &Hub{
		conns:  make(map[string]Conn),
		rooms:  make(map[string]map[string]struct{}),
		joined: make(map[string]map[string]struct{}),
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Add registers a connection.
func (h *Hub) Add(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c.ID()] = c
	h.joined[c.ID()] = make(map[string]struct{})
}

// Remove unregisters a connection and drops it from every room it joined.
func (h *Hub) Remove(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for room := range h.joined[connID] {
		h.leaveLocked(connID, room)
	}
	delete(h.joined, connID)
	delete(h.conns, connID)
}

// Join adds a registered connection to a room.
func (h *Hub) Join(connID, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	rooms, ok := h.joined[connID]
	if !ok {
		return
	}
	rooms[room] = struct{}{}
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[string]struct{})
	}
	h.rooms[room][connID] = struct{}{}
}

// Leave removes a connection from a room.
func (h *Hub) Leave(connID, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(connID, room)
}

func (h *Hub) leaveLocked(connID, room string) {
	delete(h.joined[connID], room)
	if members, ok := h.rooms[room]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

// InRoom reports whether the connection is a member of room.
func (h *Hub) InRoom(connID, room string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[room][connID]
	return ok
}

// ClientCount returns the number of connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// RoomCount returns the number of non-empty rooms.
func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// RoomClientCount returns the number of connections in a room.
func (h *Hub) RoomClientCount(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// ToConn sends an event to one connection.
func (h *Hub) ToConn(connID, event string, data any) {
	h.mu.RLock()
	c, ok := h.conns[connID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	h.deliver(event, data, []Conn{c})
}

// ToRoom sends an event to every member of room except the connection named by except.
func (h *Hub) ToRoom(room, except, event string, data any) {
	h.mu.RLock()
	targets := make([]Conn, 0, len(h.rooms[room]))
	for connID := range h.rooms[room] {
		if connID == except {
			continue
		}
		if c, ok := h.conns[connID]; ok {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()
	h.deliver(event, data, targets)
}

// ToAll sends an event to every connection except the one named by except.
func (h *Hub) ToAll(except, event string, data any) {
	h.mu.RLock()
	targets := make([]Conn, 0, len(h.conns))
	for connID, c := range h.conns {
		if connID != except {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()
	h.deliver(event, data, targets)
}

// deliver encodes once and writes outside the lock. A failed write means the peer is gone;
// its read loop will observe the close and clean up.
func (h *Hub) deliver(event string, data any, targets []Conn) {
	if len(targets) == 0 {
		return
	}
	frame, err := Encode(event, data)
	if err != nil {
		h.logger.Error("Failed to encode event", "event", event, "error", err)
		return
	}
	for _, c := range targets {
		if err := c.Send(frame); err != nil {
			h.logger.Debug("Failed to send to connection", "connID", c.ID(), "event", event, "error", err)
		}
	}
}

// Run sends the heartbeat ping to every connection on each tick until ctx is cancelled.
func (h *Hub) Run(ctx context.Context, interval time.Duration) {
	defer close(h.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			h.ToAll("", EventPing, HeartbeatPayload{Timestamp: now.UnixMilli()})
		}
	}
}

// Wait blocks until Run has returned.
func (h *Hub) Wait() {
	<-h.done
}

// CloseAll closes every connection. Read loops observe the close and disconnect their sessions.
func (h *Hub) CloseAll() int {
	h.mu.RLock()
	conns := make([]Conn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		_ = c.Close()
	}
	return len(conns)
}
