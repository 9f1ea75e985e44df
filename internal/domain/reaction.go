package domain

import (
	"time"

	"github.com/google/uuid"
)

// Reaction is one identity's reaction to one message. Uniqueness is
// composite on (message, identity): a user holds at most one reaction per
// message, and changing it is a delete-then-create, never an update.
type Reaction struct {
	MessageID uuid.UUID `json:"message_id"`
	Identity  uuid.UUID `json:"identity"`
	Emoji     string    `json:"emoji"`
	CreatedAt time.Time `json:"created_at"`
}

// Emojis is the fixed set of reaction emoji the platform accepts.
var Emojis = []string{"👍", "❤️", "😂", "😮", "😢", "🔥"}

func ValidEmoji(e string) bool {
	for _, v := range Emojis {
		if v == e {
			return true
		}
	}
	return false
}
