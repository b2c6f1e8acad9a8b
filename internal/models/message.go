package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Message types.
const (
	MessageText   = "text"
	MessageImage  = "image"
	MessageFile   = "file"
	MessageSystem = "system"
)

// Message is a single entry in a conversation's history. System messages
// (membership announcements) carry a nil sender and are read by construction.
// Messages are never physically removed except via bulk conversation clear;
// user deletion only flips the soft-delete flag.
type Message struct {
	ID             string `gorm:"primaryKey" json:"id"`
	ConversationID string `gorm:"type:text;not null;index:idx_conv_msg" json:"conversationId"`
	// SenderID is nil only for system-generated messages.
	SenderID *string `gorm:"type:text;index:idx_conv_msg" json:"senderId,omitempty"`
	Content  string  `gorm:"type:text;not null" json:"content"`
	Type     string  `gorm:"type:text;not null" json:"type"`
	FileURL  string  `gorm:"type:text" json:"fileUrl,omitempty"`
	// ReadBy is the set of user IDs that have acknowledged this message.
	ReadBy pq.StringArray `gorm:"type:text[]" json:"readBy"`

	Deleted   bool       `gorm:"not null;default:false" json:"deleted"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

func (m *Message) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return
}

// IsSystem reports whether this is a synthesized membership announcement.
func (m *Message) IsSystem() bool {
	return m.Type == MessageSystem
}

// ReadByUser reports whether userID is in the ReadBy set.
func (m *Message) ReadByUser(userID string) bool {
	for _, id := range m.ReadBy {
		if id == userID {
			return true
		}
	}
	return false
}
