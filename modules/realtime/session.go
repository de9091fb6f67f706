package realtime

import (
	"slices"
	"time"

	"github.com/tasklink/chat-server/domain/user"
)

// Session is the server-side state of one connection. It is only touched by the
// goroutine reading that connection.
type Session struct {
	conn    Conn
	limiter *rateLimiter

	userID      string
	displayName string
	email       string
	role        string
	status      string
	lastSeen    time.Time
	rooms       []string
	closed      bool
}

func newSession(conn Conn, limiter *rateLimiter) *Session {
	return &Session{
		conn:    conn,
		limiter: limiter,
	}
}

// SocketID returns the transport-assigned connection id.
func (s *Session) SocketID() string { return s.conn.ID() }

// UserID returns the authenticated user, or "" before authentication.
func (s *Session) UserID() string { return s.userID }

// DisplayName returns the cached display name of the user.
func (s *Session) DisplayName() string { return s.displayName }

// Status returns the last status the session reported.
func (s *Session) Status() string { return s.status }

// LastSeen returns the time of the last status change.
func (s *Session) LastSeen() time.Time { return s.lastSeen }

// Rooms returns the joined rooms in join order.
func (s *Session) Rooms() []string { return slices.Clone(s.rooms) }

// Authenticated reports whether the session has an identity.
func (s *Session) Authenticated() bool { return s.userID != "" }

func (s *Session) identify(id *user.Identity, status string, at time.Time) {
	s.userID = id.UserID
	s.displayName = id.DisplayName
	s.email = id.Email
	s.role = id.Role
	s.setStatus(status, at)
}

func (s *Session) setStatus(status string, at time.Time) {
	s.status = status
	s.lastSeen = at
}

func (s *Session) inRoom(room string) bool {
	return slices.Contains(s.rooms, room)
}

func (s *Session) join(room string) {
	if !s.inRoom(room) {
		s.rooms = append(s.rooms, room)
	}
}

func (s *Session) leave(room string) {
	s.rooms = slices.DeleteFunc(s.rooms, func(r string) bool { return r == room })
}
