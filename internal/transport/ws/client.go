package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/mkrecak/backstage/internal/service"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	writeWait    = 10 * time.Second
	pingInterval = 30 * time.Second
)

// Client owns one WebSocket connection: it pumps inbound frames into the
// services and drains its session's send channel back onto the wire.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	session  *Session
	typing   *service.TypingService
	messages *service.MessageService
}

func NewClient(hub *Hub, conn *websocket.Conn, session *Session, typing *service.TypingService, messages *service.MessageService) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		session:  session,
		typing:   typing,
		messages: messages,
	}
}

// ReadPump reads frames from the WebSocket and routes them. Returning
// unregisters the session, which implicitly leaves every joined room.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c.session)
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		var env Envelope
		err := wsjson.Read(context.Background(), c.conn, &env)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				log.Printf("ws: session %s disconnected", c.session.ID)
			} else {
				log.Printf("ws: read error from %s: %v", c.session.ID, err)
			}
			return
		}

		c.handleEnvelope(&env)
	}
}

// WritePump writes frames from the session's send channel to the WebSocket.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case message := <-c.session.send:
			ctx, cancel := context.WithTimeout(context.Background(), writeWait)
			err := c.conn.Write(ctx, websocket.MessageText, message)
			cancel()
			if err != nil {
				log.Printf("ws: write error to %s: %v", c.session.ID, err)
				return
			}

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), writeWait)
			err := c.conn.Ping(ctx)
			cancel()
			if err != nil {
				log.Printf("ws: ping error to %s: %v", c.session.ID, err)
				return
			}

		case <-c.session.Done():
			return
		}
	}
}

func (c *Client) handleEnvelope(env *Envelope) {
	ctx := context.Background()

	switch env.Type {
	case TypeRoomJoin:
		var p RoomPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			c.sendError("INVALID_PAYLOAD", "invalid room.join payload")
			return
		}
		if err := c.hub.JoinRoom(ctx, c.session, p.ConversationID); err != nil {
			c.sendServiceError(err)
			return
		}
		log.Printf("ws: session %s joined room %s", c.session.ID, p.ConversationID)

	case TypeRoomLeave:
		var p RoomPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			c.sendError("INVALID_PAYLOAD", "invalid room.leave payload")
			return
		}
		c.hub.LeaveRoom(c.session, p.ConversationID)

	case TypeTypingStart, TypeTypingStop:
		if env.ConversationID == nil {
			c.sendError("INVALID_PAYLOAD", "conversation_id required for typing events")
			return
		}
		var err error
		if env.Type == TypeTypingStart {
			err = c.typing.Start(ctx, *env.ConversationID, c.session.Identity, c.session.ID)
		} else {
			err = c.typing.Stop(ctx, *env.ConversationID, c.session.Identity, c.session.ID)
		}
		if err != nil {
			c.sendServiceError(err)
		}

	case TypeMessageAck:
		var p AckPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			c.sendError("INVALID_PAYLOAD", "invalid message.ack payload")
			return
		}
		if err := c.messages.MarkDelivered(ctx, p.MessageID, c.session.Identity); err != nil {
			c.sendServiceError(err)
		}

	case TypePing:
		c.sendRaw(Envelope{Type: TypePong})

	default:
		c.sendError("UNKNOWN_EVENT", "unknown event type: "+env.Type)
	}
}

func (c *Client) sendServiceError(err error) {
	switch {
	case errors.Is(err, service.ErrConversationNotFound), errors.Is(err, service.ErrMessageNotFound):
		c.sendError("NOT_FOUND", err.Error())
	default:
		log.Printf("ERROR ws event from %s: %v", c.session.ID, err)
		c.sendError("INTERNAL", "something went wrong")
	}
}

func (c *Client) sendError(code, message string) {
	payload, err := json.Marshal(ErrorPayload{Code: code, Message: message})
	if err != nil {
		return
	}
	c.sendRaw(Envelope{Type: TypeError, Payload: payload})
}

func (c *Client) sendRaw(env Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		return
	}
	select {
	case c.session.send <- data:
	default:
	}
}
