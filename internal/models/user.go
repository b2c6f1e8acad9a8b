package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User represents a member of the campus network. Only the fields the
// realtime core touches live here; the rest of the profile is owned by the
// social-content services.
type User struct {
	ID    string `gorm:"primaryKey" json:"id"`
	Name  string `gorm:"type:text;not null" json:"name"`
	Email string `gorm:"uniqueIndex;type:text;not null" json:"email"`
	// LastSeen is updated best-effort when the user's connection goes away.
	LastSeen  time.Time `json:"lastSeen"`
	CreatedAt time.Time `json:"createdAt"`
}

// BeforeCreate is a GORM hook that assigns a fresh UUID when none is set.
func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return
}

// Friendship is a single directed friend edge. The application writes both
// directions on acceptance, so friend lookups only scan one column.
type Friendship struct {
	UserID    string    `gorm:"primaryKey;type:text" json:"userId"`
	FriendID  string    `gorm:"primaryKey;type:text" json:"friendId"`
	CreatedAt time.Time `json:"createdAt"`
}

// FriendPresence is the polling-friendly snapshot returned by /online-users:
// whether each friend is currently on the chat page plus their durable
// last-seen timestamp.
type FriendPresence struct {
	UserID     string    `json:"userId"`
	Name       string    `json:"name"`
	OnChatPage bool      `json:"onChatPage"`
	LastSeen   time.Time `json:"lastSeen"`
}
