package domain

import (
	"time"

	"github.com/google/uuid"
)

// GroupMemberCap is the maximum number of participants in a group
// conversation, creator included.
const GroupMemberCap = 50

// Conversation is a persisted thread of messages between two or more
// identities. Direct conversations carry a canonical pair key so that the
// same two identities always resolve to the same conversation; groups carry
// a name, an admin set and a participant cap. Conversations are never hard
// deleted, only archived.
type Conversation struct {
	ID           uuid.UUID       `json:"id"`
	IsGroup      bool            `json:"is_group"`
	Name         *string         `json:"name,omitempty"`
	Picture      *string         `json:"picture,omitempty"`
	Participants []uuid.UUID     `json:"participants"`
	Admins       []uuid.UUID     `json:"admins,omitempty"`
	PairKey      *string         `json:"-"`
	LastMessage  *MessageSummary `json:"last_message,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	ArchivedAt   *time.Time      `json:"archived_at,omitempty"`
}

// MessageSummary is the denormalized last-message preview carried on a
// conversation for list views.
type MessageSummary struct {
	MessageID uuid.UUID `json:"message_id"`
	SenderID  uuid.UUID `json:"sender_id"`
	Preview   string    `json:"preview"`
	SentAt    time.Time `json:"sent_at"`
}

func (c *Conversation) HasParticipant(id uuid.UUID) bool {
	for _, p := range c.Participants {
		if p == id {
			return true
		}
	}
	return false
}

func (c *Conversation) IsAdmin(id uuid.UUID) bool {
	for _, a := range c.Admins {
		if a == id {
			return true
		}
	}
	return false
}

func (c *Conversation) IsArchived() bool {
	return c.ArchivedAt != nil
}

// OtherParticipant returns the peer of a direct conversation.
func (c *Conversation) OtherParticipant(id uuid.UUID) uuid.UUID {
	for _, p := range c.Participants {
		if p != id {
			return p
		}
	}
	return uuid.Nil
}

// DirectPairKey returns the canonical key for the 1:1 conversation between
// a and b. The lower UUID (by string order) always comes first, so the pair
// (a,b) and (b,a) produce the same key.
func DirectPairKey(a, b uuid.UUID) string {
	if a.String() > b.String() {
		a, b = b, a
	}
	return a.String() + ":" + b.String()
}
