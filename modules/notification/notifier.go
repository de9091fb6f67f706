// Package notification turns new chat messages into durable, user-visible notifications.
package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-monolith/mono"
	"github.com/tasklink/chat-server/events"
)

// Notification content for new chat messages.
const (
	MessageTitle    = "New message"
	MessageType     = "message"
	previewRunes    = 100
	actionURLFormat = "/jobs/%s/messages"
)

// BusNotifier hands notification requests to the event bus. Delivery and persistence
// happen in the notification module's consumer.
type BusNotifier struct {
	bus mono.EventBus
}

// NewBusNotifier creates a BusNotifier publishing on bus.
func NewBusNotifier(bus mono.EventBus) *BusNotifier {
	return &BusNotifier{bus: bus}
}

// Notify publishes a NotificationRequested event.
func (n *BusNotifier) Notify(_ context.Context, event events.NotificationRequestedEvent) error {
	if n.bus == nil {
		return errors.New("event bus not set")
	}
	if err := events.NotificationRequestedV1.Publish(n.bus, event, nil); err != nil {
		return fmt.Errorf("failed to publish NotificationRequested: %w", err)
	}
	return nil
}

// ForMessage builds the notification sent to recipientID about a new message.
func ForMessage(recipientID, senderName, jobID, messageID, content string, at time.Time) events.NotificationRequestedEvent {
	return events.NotificationRequestedEvent{
		UserID:    recipientID,
		Title:     MessageTitle,
		Body:      senderName + ": " + preview(content),
		Type:      MessageType,
		JobID:     jobID,
		ActionURL: fmt.Sprintf(actionURLFormat, jobID),
		MessageID: messageID,
		Timestamp: at,
	}
}

func preview(content string) string {
	runes := []rune(content)
	if len(runes) <= previewRunes {
		return content
	}
	return string(runes[:previewRunes])
}
