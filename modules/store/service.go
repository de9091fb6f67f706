package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tasklink/chat-server/domain/chat"
	"github.com/tasklink/chat-server/domain/job"
	"github.com/tasklink/chat-server/domain/user"
	"golang.org/x/sync/singleflight"
)

// Service implements the store operations on top of the repository.
type Service struct {
	repo    *Repository
	jobs    singleflight.Group // coalesces concurrent lookups of the same job
	nowFunc func() time.Time
}

// NewService creates a new store service.
func NewService(repo *Repository) *Service {
	return &Service{
		repo:    repo,
		nowFunc: time.Now,
	}
}

// GetUser returns a user by ID.
func (s *Service) GetUser(_ context.Context, userID string) (*user.User, error) {
	return s.repo.FindUserByID(userID)
}

// FindUserByEmail returns a user by email.
func (s *Service) FindUserByEmail(_ context.Context, email string) (*user.User, error) {
	return s.repo.FindUserByEmail(email)
}

// GetJob returns a job by ID. Concurrent lookups of the same job share one query.
func (s *Service) GetJob(_ context.Context, jobID string) (*job.Job, error) {
	v, err, _ := s.jobs.Do(jobID, func() (any, error) {
		return s.repo.FindJob(jobID)
	})
	if err != nil {
		return nil, err
	}
	j := *v.(*job.Job)
	return &j, nil
}

// CreateMessage persists an unread message and returns it with the sender's display name.
func (s *Service) CreateMessage(_ context.Context, req CreateMessageRequest) (*chat.Message, error) {
	if req.JobID == "" || req.SenderID == "" {
		return nil, errors.New("job id and sender id are required")
	}
	msgType := req.MessageType
	if msgType == "" {
		msgType = chat.MessageTypeText
	}

	sender, err := s.repo.FindUserByID(req.SenderID)
	if err != nil {
		return nil, err
	}

	msg := &chat.Message{
		ID:          uuid.New().String(),
		JobID:       req.JobID,
		SenderID:    req.SenderID,
		Content:     req.Content,
		MessageType: msgType,
		IsRead:      false,
		CreatedAt:   s.nowFunc(),
	}
	if err := s.repo.CreateMessage(msg); err != nil {
		return nil, err
	}
	msg.SenderName = sender.DisplayName()
	return msg, nil
}

// MarkRead marks messages read on behalf of readerID.
func (s *Service) MarkRead(_ context.Context, ids []string, readerID string) ([]chat.ReadReceipt, error) {
	return s.repo.MarkRead(ids, readerID, s.nowFunc())
}

// ListMessages returns the latest messages of a job with sender names filled in.
func (s *Service) ListMessages(_ context.Context, jobID string, limit int) ([]*chat.Message, error) {
	messages, err := s.repo.ListMessages(jobID, clampLimit(limit))
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var senderIDs []string
	for _, m := range messages {
		if !seen[m.SenderID] {
			seen[m.SenderID] = true
			senderIDs = append(senderIDs, m.SenderID)
		}
	}
	senders, err := s.repo.FindUsersByIDs(senderIDs)
	if err != nil {
		return nil, err
	}
	for _, m := range messages {
		if u, ok := senders[m.SenderID]; ok {
			m.SenderName = u.DisplayName()
		}
	}
	return messages, nil
}

// CreateNotification persists a notification.
func (s *Service) CreateNotification(_ context.Context, req CreateNotificationRequest) (*chat.Notification, error) {
	if req.UserID == "" {
		return nil, errors.New("notification user id is required")
	}
	if _, err := s.repo.FindUserByID(req.UserID); err != nil {
		return nil, fmt.Errorf("notification recipient: %w", err)
	}

	n := &chat.Notification{
		ID:        uuid.New().String(),
		UserID:    req.UserID,
		Title:     req.Title,
		Body:      req.Body,
		Type:      req.Type,
		JobID:     req.JobID,
		ActionURL: req.ActionURL,
		CreatedAt: s.nowFunc(),
	}
	if err := s.repo.CreateNotification(n); err != nil {
		return nil, err
	}
	return n, nil
}

// ListNotifications returns the latest notifications of a user.
func (s *Service) ListNotifications(_ context.Context, userID string, unreadOnly bool, limit int) ([]*chat.Notification, error) {
	return s.repo.ListNotifications(userID, unreadOnly, clampLimit(limit))
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
