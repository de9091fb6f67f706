package user

import (
	"strings"
	"time"
)

// Roles a marketplace account can hold.
const (
	RolePoster = "poster"
	RoleDoer   = "doer"
	RoleAdmin  = "admin"
)

// User represents a marketplace account.
type User struct {
	ID           string    `gorm:"primaryKey;type:text" json:"id"`
	Email        string    `gorm:"uniqueIndex;not null;type:text" json:"email"`
	PasswordHash string    `gorm:"not null;type:text" json:"-"`
	FirstName    string    `gorm:"type:text" json:"firstName"`
	LastName     string    `gorm:"type:text" json:"lastName"`
	Role         string    `gorm:"type:text;not null;default:doer" json:"role"`
	IsVerified   bool      `gorm:"not null;default:false" json:"isVerified"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// TableName returns the table name for the User entity.
func (User) TableName() string {
	return "users"
}

// DisplayName joins first and last name, falling back to the email address.
func (u User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Email
	}
	return name
}

// Identity is the verified view of a user carried by an authenticated session.
type Identity struct {
	UserID      string `json:"userId"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	DisplayName string `json:"displayName"`
	IsVerified  bool   `json:"isVerified"`
}
