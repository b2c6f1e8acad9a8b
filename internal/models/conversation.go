package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Conversation types.
const (
	ConversationDirect = "direct"
	ConversationGroup  = "group"
)

// Conversation is a chat room: either a 2-party direct chat created on first
// contact, or an N-party group created explicitly. Direct rooms are never
// hard-deleted; group deletion cascades over the message history.
type Conversation struct {
	ID   string `gorm:"primaryKey" json:"id"`
	Type string `gorm:"type:text;not null;index" json:"type"`
	// Name is only meaningful for group rooms.
	Name string `gorm:"type:text" json:"name,omitempty"`
	// Participants holds the user IDs allowed to act in this room. Exactly
	// two entries for direct rooms.
	Participants pq.StringArray `gorm:"type:text[];not null" json:"participants"`
	// Admins is a subset of Participants. A user removed from Participants
	// must be stripped from Admins in the same update.
	Admins    pq.StringArray `gorm:"type:text[]" json:"admins,omitempty"`
	CreatedBy string         `gorm:"type:text" json:"createdBy"`
	// JoinCode lets users join a group by link. Empty for direct rooms.
	JoinCode string `gorm:"type:text;index" json:"joinCode,omitempty"`

	// LastMessageID / LastMessageAt track the most recent message for
	// conversation-list ordering.
	LastMessageID *string   `gorm:"type:text" json:"lastMessageId,omitempty"`
	LastMessageAt time.Time `json:"lastMessageAt"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (c *Conversation) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return
}

// IsGroup reports whether this room uses group delivery semantics.
func (c *Conversation) IsGroup() bool {
	return c.Type == ConversationGroup
}

// HasParticipant reports whether userID may act within this room.
func (c *Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// HasAdmin reports whether userID holds admin rights in this room.
func (c *Conversation) HasAdmin(userID string) bool {
	for _, a := range c.Admins {
		if a == userID {
			return true
		}
	}
	return false
}

// OtherParticipant returns the peer of userID in a direct room, or "" when
// the room is not direct or userID is not a participant.
func (c *Conversation) OtherParticipant(userID string) string {
	if c.IsGroup() || len(c.Participants) != 2 {
		return ""
	}
	if c.Participants[0] == userID {
		return c.Participants[1]
	}
	if c.Participants[1] == userID {
		return c.Participants[0]
	}
	return ""
}
