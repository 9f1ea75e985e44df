package ws

import (
	"context"
	"log"

	"sync"

	"github.com/google/uuid"
	"github.com/mkrecak/backstage/internal/domain"
	"github.com/mkrecak/backstage/internal/metrics"
)

const sendBufSize = 256

// RoomAuthorizer checks that an identity may join a conversation room. The
// hub consults it on every join; room membership is never trusted from the
// client.
type RoomAuthorizer interface {
	CanJoin(ctx context.Context, conversationID, identity uuid.UUID) error
}

// Session is one live connection of one identity. Its room set lives under
// the hub lock; the send channel is drained by the connection's write pump.
type Session struct {
	ID       uuid.UUID
	Identity uuid.UUID

	send  chan []byte
	done  chan struct{}
	rooms map[uuid.UUID]struct{}
}

// Done is closed when the session is unregistered.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Hub is the connection and presence registry: every live session, the
// identity it belongs to, and the conversation rooms it has joined. All of
// it is a lossy cache of liveness — the hub starts empty on boot and
// clients rejoin their rooms after reconnecting; nothing here ever alters
// persisted membership.
type Hub struct {
	auth RoomAuthorizer

	mu         sync.RWMutex
	sessions   map[uuid.UUID]*Session
	byIdentity map[uuid.UUID]map[uuid.UUID]*Session
	rooms      map[uuid.UUID]map[uuid.UUID]*Session

	relay *Relay
}

func NewHub(auth RoomAuthorizer) *Hub {
	return &Hub{
		auth:       auth,
		sessions:   make(map[uuid.UUID]*Session),
		byIdentity: make(map[uuid.UUID]map[uuid.UUID]*Session),
		rooms:      make(map[uuid.UUID]map[uuid.UUID]*Session),
	}
}

// SetRelay attaches the optional cross-instance broadcast relay.
func (h *Hub) SetRelay(r *Relay) {
	h.relay = r
}

// Register creates a session for an authenticated identity.
func (h *Hub) Register(identity uuid.UUID) *Session {
	s := &Session{
		ID:       uuid.New(),
		Identity: identity,
		send:     make(chan []byte, sendBufSize),
		done:     make(chan struct{}),
		rooms:    make(map[uuid.UUID]struct{}),
	}

	h.mu.Lock()
	h.sessions[s.ID] = s
	if h.byIdentity[identity] == nil {
		h.byIdentity[identity] = make(map[uuid.UUID]*Session)
	}
	h.byIdentity[identity][s.ID] = s
	total := len(h.sessions)
	h.mu.Unlock()

	metrics.ActiveSessions.Set(float64(total))
	log.Printf("ws hub: identity %s connected, session %s (%d total)", identity, s.ID, total)
	return s
}

// Unregister removes a session and implicitly leaves all its rooms. It is
// idempotent and never touches persisted conversation membership: an admin
// disconnecting is still an admin.
func (h *Hub) Unregister(s *Session) {
	h.mu.Lock()
	if _, ok := h.sessions[s.ID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.sessions, s.ID)
	if peers, ok := h.byIdentity[s.Identity]; ok {
		delete(peers, s.ID)
		if len(peers) == 0 {
			delete(h.byIdentity, s.Identity)
		}
	}
	for roomID := range s.rooms {
		h.dropFromRoom(roomID, s.ID)
	}
	close(s.done)
	total := len(h.sessions)
	openRooms := len(h.rooms)
	h.mu.Unlock()

	metrics.ActiveSessions.Set(float64(total))
	metrics.OpenRooms.Set(float64(openRooms))
	log.Printf("ws hub: session %s disconnected (%d total)", s.ID, total)
}

// JoinRoom subscribes a session to a conversation room after the authorizer
// has confirmed membership.
func (h *Hub) JoinRoom(ctx context.Context, s *Session, conversationID uuid.UUID) error {
	if err := h.auth.CanJoin(ctx, conversationID, s.Identity); err != nil {
		return err
	}

	h.mu.Lock()
	if _, ok := h.sessions[s.ID]; !ok {
		h.mu.Unlock()
		return nil
	}
	if h.rooms[conversationID] == nil {
		h.rooms[conversationID] = make(map[uuid.UUID]*Session)
	}
	h.rooms[conversationID][s.ID] = s
	s.rooms[conversationID] = struct{}{}
	openRooms := len(h.rooms)
	h.mu.Unlock()

	metrics.OpenRooms.Set(float64(openRooms))
	return nil
}

func (h *Hub) LeaveRoom(s *Session, conversationID uuid.UUID) {
	h.mu.Lock()
	delete(s.rooms, conversationID)
	h.dropFromRoom(conversationID, s.ID)
	openRooms := len(h.rooms)
	h.mu.Unlock()

	metrics.OpenRooms.Set(float64(openRooms))
}

// dropFromRoom removes a session from a room and deletes the room when it
// empties. Caller holds h.mu.
func (h *Hub) dropFromRoom(conversationID, sessionID uuid.UUID) {
	if room, ok := h.rooms[conversationID]; ok {
		delete(room, sessionID)
		if len(room) == 0 {
			delete(h.rooms, conversationID)
		}
	}
}

// Broadcast delivers an event to every session joined to the conversation's
// room except the excluded sessions. The recipient set is a snapshot taken
// under the registry lock: a session joining concurrently may miss this one
// event and resyncs through the history fetch. Delivery is non-blocking per
// session; a session whose buffer is full is disconnected rather than
// allowed to stall the room, and one bad session never aborts the rest.
func (h *Hub) Broadcast(conversationID uuid.UUID, event domain.Event, excludeSessions ...uuid.UUID) {
	data, err := Encode(event)
	if err != nil {
		log.Printf("ws hub: encode error: %v", err)
		return
	}

	excluded := make(map[uuid.UUID]struct{}, len(excludeSessions))
	for _, id := range excludeSessions {
		excluded[id] = struct{}{}
	}

	metrics.BroadcastsTotal.Inc()
	h.broadcastLocal(conversationID, data, excluded)

	if h.relay != nil {
		h.relay.Publish(conversationID, data)
	}
}

func (h *Hub) broadcastLocal(conversationID uuid.UUID, data []byte, excluded map[uuid.UUID]struct{}) {
	h.mu.RLock()
	room := h.rooms[conversationID]
	targets := make([]*Session, 0, len(room))
	for _, s := range room {
		if _, skip := excluded[s.ID]; skip {
			continue
		}
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	var stale []*Session
	for _, s := range targets {
		select {
		case s.send <- data:
		default:
			metrics.DroppedEvents.Inc()
			stale = append(stale, s)
		}
	}
	for _, s := range stale {
		log.Printf("ws hub: session %s too slow, dropping", s.ID)
		h.Unregister(s)
	}
}

// DeliverTo sends an event to every live session of one identity,
// regardless of rooms. Used by fan-out. Reports whether at least one
// session received it.
func (h *Hub) DeliverTo(identity uuid.UUID, event domain.Event) bool {
	data, err := Encode(event)
	if err != nil {
		log.Printf("ws hub: encode error: %v", err)
		return false
	}

	h.mu.RLock()
	peers := h.byIdentity[identity]
	targets := make([]*Session, 0, len(peers))
	for _, s := range peers {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	delivered := false
	for _, s := range targets {
		select {
		case s.send <- data:
			delivered = true
		default:
			metrics.DroppedEvents.Inc()
		}
	}
	return delivered
}

// IsOnline reports whether an identity has at least one live session.
func (h *Hub) IsOnline(identity uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byIdentity[identity]) > 0
}

// OnlineOf filters the given identities down to those with a live session.
func (h *Hub) OnlineOf(identities []uuid.UUID) []uuid.UUID {
	h.mu.RLock()
	defer h.mu.RUnlock()

	online := make([]uuid.UUID, 0, len(identities))
	for _, id := range identities {
		if len(h.byIdentity[id]) > 0 {
			online = append(online, id)
		}
	}
	return online
}
