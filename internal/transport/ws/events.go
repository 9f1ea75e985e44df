package ws

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mkrecak/backstage/internal/domain"
)

// Event types - Client → Server
const (
	TypeRoomJoin    = "room.join"
	TypeRoomLeave   = "room.leave"
	TypeTypingStart = "typing.start"
	TypeTypingStop  = "typing.stop"
	TypeMessageAck  = "message.ack"
	TypePing        = "ping"
)

// Event types - Server → Client
const (
	TypeSessionReady     = "session.ready"
	TypeMessageCreated   = "message.created"
	TypeMessageDelivered = "message.delivered"
	TypeMessageRead      = "message.read"
	TypeMessageReaction  = "message.reaction"
	TypeNotification     = "notification"
	TypePong             = "pong"
	TypeError            = "error"
)

// Envelope is the wire frame for every message on the socket. Each event
// carries the conversation it belongs to so a connection multiplexing many
// rooms can route it.
type Envelope struct {
	Type           string          `json:"type"`
	ConversationID *uuid.UUID      `json:"conversation_id,omitempty"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	Timestamp      int64           `json:"ts,omitempty"`
}

// --- Client → Server payloads ---

type RoomPayload struct {
	ConversationID uuid.UUID `json:"conversation_id"`
}

type AckPayload struct {
	MessageID uuid.UUID `json:"message_id"`
}

// --- Server → Client payloads ---

type SessionReadyPayload struct {
	SessionID uuid.UUID `json:"session_id"`
	Identity  uuid.UUID `json:"identity"`
}

type DeliveredPayload struct {
	MessageID   uuid.UUID `json:"message_id"`
	Recipient   uuid.UUID `json:"recipient"`
	DeliveredAt time.Time `json:"delivered_at"`
}

type ReadPayload struct {
	MessageID uuid.UUID `json:"message_id"`
	Reader    uuid.UUID `json:"reader"`
	ReadAt    time.Time `json:"read_at"`
}

type TypingPayload struct {
	Identity uuid.UUID `json:"identity"`
}

type ReactionPayload struct {
	MessageID uuid.UUID      `json:"message_id"`
	Identity  uuid.UUID      `json:"identity"`
	Emoji     string         `json:"emoji"`
	Action    string         `json:"action"`
	Counts    map[string]int `json:"counts"`
}

type NotificationPayload struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Encode turns a domain event into its wire frame. The switch is exhaustive
// over the event union; an unhandled variant is a programming error.
func Encode(e domain.Event) ([]byte, error) {
	switch ev := e.(type) {
	case domain.MessageCreated:
		return marshalEnvelope(TypeMessageCreated, &ev.Message.ConversationID, ev.Message)
	case domain.MessageDelivered:
		return marshalEnvelope(TypeMessageDelivered, &ev.ConversationID, DeliveredPayload{
			MessageID:   ev.MessageID,
			Recipient:   ev.Recipient,
			DeliveredAt: ev.DeliveredAt,
		})
	case domain.MessageRead:
		return marshalEnvelope(TypeMessageRead, &ev.ConversationID, ReadPayload{
			MessageID: ev.MessageID,
			Reader:    ev.Reader,
			ReadAt:    ev.ReadAt,
		})
	case domain.TypingStart:
		return marshalEnvelope(TypeTypingStart, &ev.ConversationID, TypingPayload{Identity: ev.Identity})
	case domain.TypingStop:
		return marshalEnvelope(TypeTypingStop, &ev.ConversationID, TypingPayload{Identity: ev.Identity})
	case domain.ReactionChanged:
		return marshalEnvelope(TypeMessageReaction, &ev.ConversationID, ReactionPayload{
			MessageID: ev.MessageID,
			Identity:  ev.Identity,
			Emoji:     ev.Emoji,
			Action:    ev.Action,
			Counts:    ev.Counts,
		})
	case domain.FanOutEvent:
		return marshalEnvelope(TypeNotification, nil, NotificationPayload{
			Kind:    ev.Kind,
			Payload: ev.Payload,
		})
	default:
		return nil, fmt.Errorf("ws: no wire encoding for event %T", e)
	}
}

func marshalEnvelope(eventType string, conversationID *uuid.UUID, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{
		Type:           eventType,
		ConversationID: conversationID,
		Payload:        data,
		Timestamp:      time.Now().Unix(),
	})
}
