package api

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
)

const (
	maxFrameSize = 64 * 1024
	writeWait    = 10 * time.Second
	eventTimeout = 15 * time.Second
)

// wsConn adapts a WebSocket connection to realtime.Conn. Writes come from the read loop,
// room broadcasts and the heartbeat, so they are serialized.
type wsConn struct {
	id   string
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsConn) ID() string {
	return w.id
}

func (w *wsConn) Send(frame []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return w.conn.WriteMessage(websocket.TextMessage, frame)
}

func (w *wsConn) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.Close()
}

// handleWebSocket handles WebSocket connections at /ws. Frames are handled in order on
// this goroutine until the peer goes away.
func (m *APIModule) handleWebSocket(c *websocket.Conn) {
	conn := &wsConn{id: m.newSocketID(), conn: c}
	session := m.sessions.Connect(conn)
	c.SetReadLimit(maxFrameSize)

	defer func() {
		m.sessions.Disconnect(context.Background(), session)
		_ = conn.Close()
		m.logger.Info("WebSocket disconnected", "socketID", conn.id, "userID", session.UserID())
	}()

	m.logger.Info("WebSocket connected", "socketID", conn.id, "remote", c.RemoteAddr().String())

	for {
		messageType, frame, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				m.logger.Warn("WebSocket read error", "socketID", conn.id, "error", err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			m.logger.Debug("Ignoring non-text frame", "socketID", conn.id, "type", messageType)
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
		m.sessions.Handle(ctx, session, frame)
		cancel()
	}
}
