package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/tasklink/chat-server/domain/chat"
	"github.com/tasklink/chat-server/domain/job"
	"github.com/tasklink/chat-server/domain/user"
)

// Adapter gives other modules access to the store services through the service container.
type Adapter struct {
	container mono.ServiceContainer
}

// NewAdapter creates a new store Adapter.
func NewAdapter(container mono.ServiceContainer) *Adapter {
	if container == nil {
		panic("store: ServiceContainer is nil")
	}
	return &Adapter{container: container}
}

// GetUser returns a user by ID, or ErrUserNotFound.
func (a *Adapter) GetUser(ctx context.Context, userID string) (*user.User, error) {
	var resp GetUserResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceGetUser,
		json.Marshal,
		json.Unmarshal,
		&GetUserRequest{UserID: userID},
		&resp,
	); err != nil {
		return nil, fmt.Errorf("%s request failed: %w", ServiceGetUser, err)
	}
	if !resp.Found || resp.User == nil {
		return nil, ErrUserNotFound
	}
	return resp.User, nil
}

// FindUserByEmail returns a user and its password hash, or ErrUserNotFound.
func (a *Adapter) FindUserByEmail(ctx context.Context, email string) (*user.User, string, error) {
	var resp FindUserByEmailResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceFindUserByEmail,
		json.Marshal,
		json.Unmarshal,
		&FindUserByEmailRequest{Email: email},
		&resp,
	); err != nil {
		return nil, "", fmt.Errorf("%s request failed: %w", ServiceFindUserByEmail, err)
	}
	if !resp.Found || resp.User == nil {
		return nil, "", ErrUserNotFound
	}
	return resp.User, resp.PasswordHash, nil
}

// GetJob returns a job by ID, or ErrJobNotFound.
func (a *Adapter) GetJob(ctx context.Context, jobID string) (*job.Job, error) {
	var resp GetJobResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceGetJob,
		json.Marshal,
		json.Unmarshal,
		&GetJobRequest{JobID: jobID},
		&resp,
	); err != nil {
		return nil, fmt.Errorf("%s request failed: %w", ServiceGetJob, err)
	}
	if !resp.Found || resp.Job == nil {
		return nil, ErrJobNotFound
	}
	return resp.Job, nil
}

// CreateMessage persists a message and returns it with the sender's display name.
func (a *Adapter) CreateMessage(ctx context.Context, jobID, senderID, content, messageType string) (*chat.Message, error) {
	req := CreateMessageRequest{
		JobID:       jobID,
		SenderID:    senderID,
		Content:     content,
		MessageType: messageType,
	}
	var resp CreateMessageResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceCreateMessage,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("%s request failed: %w", ServiceCreateMessage, err)
	}
	if resp.Message == nil {
		return nil, fmt.Errorf("%s returned no message", ServiceCreateMessage)
	}
	return resp.Message, nil
}

// MarkRead marks messages read for readerID and returns the matching receipts.
func (a *Adapter) MarkRead(ctx context.Context, messageIDs []string, readerID string) ([]chat.ReadReceipt, error) {
	var resp MarkReadResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceMarkRead,
		json.Marshal,
		json.Unmarshal,
		&MarkReadRequest{MessageIDs: messageIDs, ReaderID: readerID},
		&resp,
	); err != nil {
		return nil, fmt.Errorf("%s request failed: %w", ServiceMarkRead, err)
	}
	return resp.Receipts, nil
}

// ListMessages returns the latest messages of a job, oldest first.
func (a *Adapter) ListMessages(ctx context.Context, jobID string, limit int) ([]*chat.Message, error) {
	var resp ListMessagesResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceListMessages,
		json.Marshal,
		json.Unmarshal,
		&ListMessagesRequest{JobID: jobID, Limit: limit},
		&resp,
	); err != nil {
		return nil, fmt.Errorf("%s request failed: %w", ServiceListMessages, err)
	}
	return resp.Messages, nil
}

// CreateNotification persists a notification.
func (a *Adapter) CreateNotification(ctx context.Context, req CreateNotificationRequest) (*chat.Notification, error) {
	var resp CreateNotificationResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceCreateNotification,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("%s request failed: %w", ServiceCreateNotification, err)
	}
	return resp.Notification, nil
}

// ListNotifications returns the latest notifications of a user.
func (a *Adapter) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*chat.Notification, error) {
	var resp ListNotificationsResponse
	req := ListNotificationsRequest{UserID: userID, UnreadOnly: unreadOnly, Limit: limit}
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceListNotifications,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("%s request failed: %w", ServiceListNotifications, err)
	}
	return resp.Notifications, nil
}
