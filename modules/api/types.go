package api

import (
	"context"
	"time"

	"github.com/tasklink/chat-server/domain/chat"
	"github.com/tasklink/chat-server/domain/job"
	"github.com/tasklink/chat-server/domain/user"
	"github.com/tasklink/chat-server/modules/presence"
	"github.com/tasklink/chat-server/modules/realtime"
)

// JobReader is the slice of the store the REST endpoints read.
type JobReader interface {
	GetJob(ctx context.Context, jobID string) (*job.Job, error)
	ListMessages(ctx context.Context, jobID string, limit int) ([]*chat.Message, error)
	ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*chat.Notification, error)
}

// PresenceReader looks up presence entries.
type PresenceReader interface {
	GetPresence(ctx context.Context, userID string) (*presence.Entry, error)
}

// SessionManager drives one WebSocket connection through the chat protocol.
type SessionManager interface {
	Connect(conn realtime.Conn) *realtime.Session
	Handle(ctx context.Context, s *realtime.Session, frame []byte)
	Disconnect(ctx context.Context, s *realtime.Session)
	Hub() *realtime.Hub
}

// LoginRequest is the API request to log in.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is returned by a successful login.
type LoginResponse struct {
	AccessToken string         `json:"access_token"`
	TokenType   string         `json:"token_type"`
	ExpiresIn   int64          `json:"expires_in"`
	User        *user.Identity `json:"user"`
}

// MessagesResponse is the message history of a job.
type MessagesResponse struct {
	JobID    string          `json:"job_id"`
	Messages []*chat.Message `json:"messages"`
	Total    int             `json:"total"`
}

// NotificationsResponse lists notifications of the caller.
type NotificationsResponse struct {
	Notifications []*chat.Notification `json:"notifications"`
	Total         int                  `json:"total"`
}

// PresenceResponse is the public presence of a user.
type PresenceResponse struct {
	UserID   string    `json:"user_id"`
	Status   string    `json:"status"`
	LastSeen time.Time `json:"last_seen"`
}

// ErrorResponse is the API error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// HealthResponse is the API health check response.
type HealthResponse struct {
	Status  string         `json:"status"`
	Details map[string]any `json:"details,omitempty"`
}
