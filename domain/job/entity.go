package job

import "time"

// Job statuses.
const (
	StatusOpen       = "open"
	StatusAssigned   = "assigned"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

// Job is a posted task. Its chat room is open to the poster and the assigned worker.
type Job struct {
	ID        string    `gorm:"primaryKey;type:text" json:"id"`
	Title     string    `gorm:"type:text;not null" json:"title"`
	PosterID  string    `gorm:"type:text;not null;index" json:"posterId"`
	WorkerID  string    `gorm:"type:text;index" json:"workerId,omitempty"`
	Status    string    `gorm:"type:text;not null;default:open" json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName returns the table name for the Job entity.
func (Job) TableName() string {
	return "jobs"
}

// IsParticipant reports whether userID is the poster or the assigned worker.
func (j Job) IsParticipant(userID string) bool {
	if userID == "" {
		return false
	}
	return j.PosterID == userID || j.WorkerID == userID
}

// OtherParticipant returns the participant that is not userID, or "" if there is none.
func (j Job) OtherParticipant(userID string) string {
	switch userID {
	case j.PosterID:
		return j.WorkerID
	case j.WorkerID:
		return j.PosterID
	}
	return ""
}
