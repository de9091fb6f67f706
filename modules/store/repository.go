package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/tasklink/chat-server/domain/chat"
	"github.com/tasklink/chat-server/domain/job"
	"github.com/tasklink/chat-server/domain/user"
	"gorm.io/gorm"
)

var (
	// ErrUserNotFound is returned when a user is not found.
	ErrUserNotFound = errors.New("user not found")
	// ErrJobNotFound is returned when a job is not found.
	ErrJobNotFound = errors.New("job not found")
)

// Repository provides GORM-backed persistence for users, jobs, messages and notifications.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new Repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Migrate creates or updates the schema.
func (r *Repository) Migrate() error {
	if err := r.db.AutoMigrate(&user.User{}, &job.Job{}, &chat.Message{}, &chat.Notification{}); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// CreateUser saves a new user.
func (r *Repository) CreateUser(u *user.User) error {
	if err := r.db.Create(u).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// FindUserByID finds a user by ID.
func (r *Repository) FindUserByID(id string) (*user.User, error) {
	var u user.User
	if err := r.db.First(&u, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &u, nil
}

// FindUserByEmail finds a user by email.
func (r *Repository) FindUserByEmail(email string) (*user.User, error) {
	var u user.User
	if err := r.db.First(&u, "email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &u, nil
}

// FindUsersByIDs returns the users with the given IDs keyed by ID.
func (r *Repository) FindUsersByIDs(ids []string) (map[string]user.User, error) {
	result := make(map[string]user.User, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var users []user.User
	if err := r.db.Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to find users: %w", err)
	}
	for _, u := range users {
		result[u.ID] = u
	}
	return result, nil
}

// CreateJob saves a new job.
func (r *Repository) CreateJob(j *job.Job) error {
	if err := r.db.Create(j).Error; err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

// FindJob finds a job by ID.
func (r *Repository) FindJob(id string) (*job.Job, error) {
	var j job.Job
	if err := r.db.First(&j, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to find job: %w", err)
	}
	return &j, nil
}

// CreateMessage saves a new message.
func (r *Repository) CreateMessage(m *chat.Message) error {
	if err := r.db.Create(m).Error; err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

// ListMessages returns the latest limit messages of a job, oldest first.
func (r *Repository) ListMessages(jobID string, limit int) ([]*chat.Message, error) {
	var messages []*chat.Message
	if err := r.db.Where("job_id = ?", jobID).
		Order("created_at DESC").
		Limit(limit).
		Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// MarkRead marks as read the messages in ids that were not sent by readerID and belong
// to a job the reader takes part in. Every matching message is returned, including
// messages that were already read, together with the time it was first read.
func (r *Repository) MarkRead(ids []string, readerID string, at time.Time) ([]chat.ReadReceipt, error) {
	receipts := []chat.ReadReceipt{}
	if len(ids) == 0 {
		return receipts, nil
	}

	err := r.db.Transaction(func(tx *gorm.DB) error {
		var matched []chat.Message
		if err := tx.Model(&chat.Message{}).
			Select("messages.*").
			Joins("JOIN jobs ON jobs.id = messages.job_id").
			Where("messages.id IN ?", ids).
			Where("messages.sender_id <> ?", readerID).
			Where("(jobs.poster_id = ? OR jobs.worker_id = ?)", readerID, readerID).
			Order("messages.created_at ASC").
			Find(&matched).Error; err != nil {
			return err
		}

		var unread []string
		for _, m := range matched {
			readAt := at
			if m.IsRead && m.ReadAt != nil {
				readAt = *m.ReadAt
			} else {
				unread = append(unread, m.ID)
			}
			receipts = append(receipts, chat.ReadReceipt{MessageID: m.ID, JobID: m.JobID, ReadAt: readAt})
		}
		if len(unread) == 0 {
			return nil
		}
		return tx.Model(&chat.Message{}).
			Where("id IN ? AND is_read = ?", unread, false).
			Updates(map[string]any{"is_read": true, "read_at": at}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to mark messages read: %w", err)
	}
	return receipts, nil
}

// FindMessage finds a message by ID.
func (r *Repository) FindMessage(id string) (*chat.Message, error) {
	var m chat.Message
	if err := r.db.First(&m, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("failed to find message: %w", err)
	}
	return &m, nil
}

// CreateNotification saves a new notification.
func (r *Repository) CreateNotification(n *chat.Notification) error {
	if err := r.db.Create(n).Error; err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// ListNotifications returns the latest limit notifications of a user, newest first.
func (r *Repository) ListNotifications(userID string, unreadOnly bool, limit int) ([]*chat.Notification, error) {
	q := r.db.Where("user_id = ?", userID)
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}
	var notifications []*chat.Notification
	if err := q.Order("created_at DESC").Limit(limit).Find(&notifications).Error; err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notifications, nil
}
