package chat

import "time"

// Message types.
const (
	MessageTypeText   = "text"
	MessageTypeImage  = "image"
	MessageTypeFile   = "file"
	MessageTypeSystem = "system"
)

// Message is a chat message in a job conversation.
type Message struct {
	ID          string     `gorm:"primaryKey;type:text" json:"id"`
	JobID       string     `gorm:"type:text;not null;index" json:"jobId"`
	SenderID    string     `gorm:"type:text;not null;index" json:"senderId"`
	SenderName  string     `gorm:"-" json:"senderName"`
	Content     string     `gorm:"type:text;not null" json:"content"`
	MessageType string     `gorm:"type:text;not null;default:text" json:"messageType"`
	IsRead      bool       `gorm:"not null;default:false;index" json:"isRead"`
	ReadAt      *time.Time `json:"readAt"`
	CreatedAt   time.Time  `gorm:"index" json:"createdAt"`
}

// TableName returns the table name for the Message entity.
func (Message) TableName() string {
	return "messages"
}

// ReadReceipt identifies a message that a reader marked as read, with the time it was first read.
type ReadReceipt struct {
	MessageID string    `json:"messageId"`
	JobID     string    `json:"jobId"`
	ReadAt    time.Time `json:"readAt"`
}

// Notification is a durable, user-visible notice.
type Notification struct {
	ID        string    `gorm:"primaryKey;type:text" json:"id"`
	UserID    string    `gorm:"type:text;not null;index" json:"userId"`
	Title     string    `gorm:"type:text;not null" json:"title"`
	Body      string    `gorm:"type:text" json:"body"`
	Type      string    `gorm:"type:text;not null" json:"type"`
	JobID     string    `gorm:"type:text;index" json:"jobId,omitempty"`
	ActionURL string    `gorm:"type:text" json:"actionUrl,omitempty"`
	IsRead    bool      `gorm:"not null;default:false" json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}

// TableName returns the table name for the Notification entity.
func (Notification) TableName() string {
	return "notifications"
}
