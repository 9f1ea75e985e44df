package domain

import (
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Delivery states. A message is persisted as "sent" and moves to
// "delivered" once at least one recipient session has acknowledged receipt.
// Read tracking is per recipient and lives in ReadBy; there is no aggregate
// "read by all" state.
const (
	DeliverySent      = "sent"
	DeliveryDelivered = "delivered"
)

// ReadReceipt records that one recipient has explicitly marked a message
// read. The sender never appears in its own message's receipts.
type ReadReceipt struct {
	Identity uuid.UUID `json:"identity"`
	ReadAt   time.Time `json:"read_at"`
}

type Message struct {
	ID             uuid.UUID     `json:"id"`
	ConversationID uuid.UUID     `json:"conversation_id"`
	SenderID       uuid.UUID     `json:"sender_id"`
	Content        *string       `json:"content,omitempty"`
	MediaRef       *string       `json:"media_ref,omitempty"`
	State          string        `json:"state"`
	DeliveredAt    *time.Time    `json:"delivered_at,omitempty"`
	ReadBy         []ReadReceipt `json:"read_by,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	// Joined fields, filled for direct conversations where read state is a
	// single scalar rather than a per-recipient set.
	Read   bool       `json:"read,omitempty"`
	ReadAt *time.Time `json:"read_at,omitempty"`
}

// ReadByIdentity reports whether the given identity has marked this message read.
func (m *Message) ReadByIdentity(id uuid.UUID) bool {
	for _, r := range m.ReadBy {
		if r.Identity == id {
			return true
		}
	}
	return false
}

const previewMax = 80

// Preview returns the short text used for a conversation's last-message summary.
func (m *Message) Preview() string {
	if m.Content == nil {
		if m.MediaRef != nil {
			return "[media]"
		}
		return ""
	}
	s := *m.Content
	if utf8.RuneCountInString(s) <= previewMax {
		return s
	}
	runes := []rune(s)
	return string(runes[:previewMax])
}
