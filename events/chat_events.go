package events

import (
	"time"

	"github.com/go-monolith/mono/pkg/helper"
)

// NotificationRequestedEvent is emitted after a chat message is persisted and the
// other participant of the job should be told about it.
type NotificationRequestedEvent struct {
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Type      string    `json:"type"`
	JobID     string    `json:"job_id"`
	ActionURL string    `json:"action_url"`
	MessageID string    `json:"message_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Event definitions for the chat domain.
var (
	NotificationRequestedV1 = helper.EventDefinition[NotificationRequestedEvent](
		"chat",
		"NotificationRequested",
		"v1",
	)
)
