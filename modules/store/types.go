package store

import (
	"github.com/tasklink/chat-server/domain/chat"
	"github.com/tasklink/chat-server/domain/job"
	"github.com/tasklink/chat-server/domain/user"
)

// Service names registered by the store module.
const (
	ServiceGetUser            = "get-user"
	ServiceFindUserByEmail    = "find-user-by-email"
	ServiceGetJob             = "get-job"
	ServiceCreateMessage      = "create-message"
	ServiceMarkRead           = "mark-read"
	ServiceListMessages       = "list-messages"
	ServiceCreateNotification = "create-notification"
	ServiceListNotifications  = "list-notifications"
)

// Limits for list services.
const (
	DefaultListLimit = 50
	MaxListLimit     = 100
)

// GetUserRequest is the request for get-user.
type GetUserRequest struct {
	UserID string `json:"user_id"`
}

// GetUserResponse is the response for get-user.
type GetUserResponse struct {
	Found bool       `json:"found"`
	User  *user.User `json:"user,omitempty"`
}

// FindUserByEmailRequest is the request for find-user-by-email.
type FindUserByEmailRequest struct {
	Email string `json:"email"`
}

// FindUserByEmailResponse carries the password hash, which user.User never serializes.
type FindUserByEmailResponse struct {
	Found        bool       `json:"found"`
	User         *user.User `json:"user,omitempty"`
	PasswordHash string     `json:"password_hash,omitempty"`
}

// GetJobRequest is the request for get-job.
type GetJobRequest struct {
	JobID string `json:"job_id"`
}

// GetJobResponse is the response for get-job.
type GetJobResponse struct {
	Found bool     `json:"found"`
	Job   *job.Job `json:"job,omitempty"`
}

// CreateMessageRequest is the request for create-message.
type CreateMessageRequest struct {
	JobID       string `json:"job_id"`
	SenderID    string `json:"sender_id"`
	Content     string `json:"content"`
	MessageType string `json:"message_type"`
}

// CreateMessageResponse is the response for create-message.
type CreateMessageResponse struct {
	Message *chat.Message `json:"message"`
}

// MarkReadRequest is the request for mark-read.
type MarkReadRequest struct {
	MessageIDs []string `json:"message_ids"`
	ReaderID   string   `json:"reader_id"`
}

// MarkReadResponse is the response for mark-read.
type MarkReadResponse struct {
	Receipts []chat.ReadReceipt `json:"receipts"`
}

// ListMessagesRequest is the request for list-messages.
type ListMessagesRequest struct {
	JobID string `json:"job_id"`
	Limit int    `json:"limit"`
}

// ListMessagesResponse is the response for list-messages.
type ListMessagesResponse struct {
	Messages []*chat.Message `json:"messages"`
}

// CreateNotificationRequest is the request for create-notification.
type CreateNotificationRequest struct {
	UserID    string `json:"user_id"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	Type      string `json:"type"`
	JobID     string `json:"job_id"`
	ActionURL string `json:"action_url"`
}

// CreateNotificationResponse is the response for create-notification.
type CreateNotificationResponse struct {
	Notification *chat.Notification `json:"notification"`
}

// ListNotificationsRequest is the request for list-notifications.
type ListNotificationsRequest struct {
	UserID     string `json:"user_id"`
	UnreadOnly bool   `json:"unread_only"`
	Limit      int    `json:"limit"`
}

// ListNotificationsResponse is the response for list-notifications.
type ListNotificationsResponse struct {
	Notifications []*chat.Notification `json:"notifications"`
}
