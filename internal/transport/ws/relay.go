package ws

import (
	"context"
	"encoding/json"
	"log"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const relayChannel = "backstage:rooms"

// Relay replicates room broadcasts across server instances through Redis
// pub/sub. Each instance publishes its local broadcasts and re-broadcasts
// frames received from peers to its own local rooms; the origin id keeps an
// instance from delivering its own frames twice. Without Redis configured
// the hub behaves exactly as a single instance.
type Relay struct {
	rdb      *redis.Client
	hub      *Hub
	instance uuid.UUID
}

type relayFrame struct {
	Origin         uuid.UUID       `json:"origin"`
	ConversationID uuid.UUID       `json:"conversation_id"`
	Data           json.RawMessage `json:"data"`
}

func NewRelay(rdb *redis.Client, hub *Hub) *Relay {
	return &Relay{
		rdb:      rdb,
		hub:      hub,
		instance: uuid.New(),
	}
}

// Publish forwards an already-encoded room frame to peer instances.
// Best effort: a Redis hiccup degrades to single-instance delivery.
func (r *Relay) Publish(conversationID uuid.UUID, data []byte) {
	frame, err := json.Marshal(relayFrame{
		Origin:         r.instance,
		ConversationID: conversationID,
		Data:           data,
	})
	if err != nil {
		return
	}
	if err := r.rdb.Publish(context.Background(), relayChannel, frame).Err(); err != nil {
		log.Printf("ws relay: publish error: %v", err)
	}
}

// Run subscribes to the relay channel and re-broadcasts peer frames to
// local rooms. Call in a goroutine; returns when ctx is cancelled.
func (r *Relay) Run(ctx context.Context) {
	pubsub := r.rdb.Subscribe(ctx, relayChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var frame relayFrame
			if err := json.Unmarshal([]byte(msg.Payload), &frame); err != nil {
				log.Printf("ws relay: bad frame: %v", err)
				continue
			}
			if frame.Origin == r.instance {
				continue
			}
			r.hub.broadcastLocal(frame.ConversationID, frame.Data, nil)
		case <-ctx.Done():
			return
		}
	}
}
