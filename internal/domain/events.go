package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event is the closed union of real-time events the core broadcasts. Each
// variant carries its own typed payload; the wire codec dispatches over the
// union exhaustively instead of routing by event-name strings.
type Event interface {
	isEvent()
}

// MessageCreated is broadcast to a conversation room after a new message
// has been persisted.
type MessageCreated struct {
	Message Message
}

// MessageDelivered is broadcast when a recipient session first acknowledges
// receipt of a message.
type MessageDelivered struct {
	ConversationID uuid.UUID
	MessageID      uuid.UUID
	Recipient      uuid.UUID
	DeliveredAt    time.Time
}

// MessageRead is broadcast when a recipient first marks a message read.
type MessageRead struct {
	ConversationID uuid.UUID
	MessageID      uuid.UUID
	Reader         uuid.UUID
	ReadAt         time.Time
}

// TypingStart and TypingStop are ephemeral, edge-triggered signals. They
// are never persisted and carry no expiry; clients apply their own timeout.
type TypingStart struct {
	ConversationID uuid.UUID
	Identity       uuid.UUID
}

type TypingStop struct {
	ConversationID uuid.UUID
	Identity       uuid.UUID
}

// ReactionChanged carries the outcome of a reaction toggle together with
// the recomputed per-emoji counts for the message.
type ReactionChanged struct {
	ConversationID uuid.UUID
	MessageID      uuid.UUID
	Identity       uuid.UUID
	Emoji          string
	Action         string // "added" | "removed"
	Counts         map[string]int
}

// FanOutEvent targets a dynamically resolved audience rather than a
// conversation room, e.g. "creator went live" to all followers.
type FanOutEvent struct {
	Kind    string
	Payload json.RawMessage
}

func (MessageCreated) isEvent()   {}
func (MessageDelivered) isEvent() {}
func (MessageRead) isEvent()      {}
func (TypingStart) isEvent()      {}
func (TypingStop) isEvent()       {}
func (ReactionChanged) isEvent()  {}
func (FanOutEvent) isEvent()      {}

// EventRoom returns the conversation an event is scoped to, or uuid.Nil for
// events that have no room.
func EventRoom(e Event) uuid.UUID {
	switch ev := e.(type) {
	case MessageCreated:
		return ev.Message.ConversationID
	case MessageDelivered:
		return ev.ConversationID
	case MessageRead:
		return ev.ConversationID
	case TypingStart:
		return ev.ConversationID
	case TypingStop:
		return ev.ConversationID
	case ReactionChanged:
		return ev.ConversationID
	default:
		return uuid.Nil
	}
}
