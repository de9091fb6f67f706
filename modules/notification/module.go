package notification

import (
	"context"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/tasklink/chat-server/domain/chat"
	"github.com/tasklink/chat-server/events"
	"github.com/tasklink/chat-server/modules/store"
)

// Writer persists notifications.
type Writer interface {
	CreateNotification(ctx context.Context, req store.CreateNotificationRequest) (*chat.Notification, error)
}

// Module consumes NotificationRequested events and stores them through the store module.
type Module struct {
	writer Writer
	logger types.Logger
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.DependentModule = (*Module)(nil)
var _ mono.EventConsumerModule = (*Module)(nil)

// NewModule creates a new notification module.
func NewModule(logger types.Logger) *Module {
	return &Module{logger: logger}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "notification"
}

// Dependencies returns the list of module dependencies.
func (m *Module) Dependencies() []string {
	return []string{"store"}
}

// SetDependencyServiceContainer receives service containers from dependencies.
func (m *Module) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	if dependency == "store" {
		m.writer = store.NewAdapter(container)
	}
}

// Start checks the module is wired.
func (m *Module) Start(_ context.Context) error {
	if m.writer == nil {
		return fmt.Errorf("store dependency not set")
	}
	m.logger.Info("Notification module started")
	return nil
}

// Stop shuts down the module.
func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("Notification module stopped")
	return nil
}

// RegisterEventConsumers registers event handlers.
func (m *Module) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(
		registry, events.NotificationRequestedV1, m.handleNotificationRequested, m,
	); err != nil {
		return fmt.Errorf("failed to register NotificationRequested consumer: %w", err)
	}
	return nil
}

// handleNotificationRequested never fails the delivery: a lost notification is logged, not retried.
func (m *Module) handleNotificationRequested(ctx context.Context, event events.NotificationRequestedEvent, _ *mono.Msg) error {
	n, err := m.writer.CreateNotification(ctx, store.CreateNotificationRequest{
		UserID:    event.UserID,
		Title:     event.Title,
		Body:      event.Body,
		Type:      event.Type,
		JobID:     event.JobID,
		ActionURL: event.ActionURL,
	})
	if err != nil {
		m.logger.Warn("Failed to create notification",
			"userID", event.UserID, "jobID", event.JobID, "messageID", event.MessageID, "error", err)
		return nil
	}
	m.logger.Debug("Notification created", "notificationID", n.ID, "userID", event.UserID)
	return nil
}
