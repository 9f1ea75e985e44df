package service

import (
	"sync"

	"github.com/google/uuid"
	"github.com/mkrecak/backstage/internal/domain"
)

// fakeBroadcaster records everything published through it.
type fakeBroadcaster struct {
	mu     sync.Mutex
	events []recordedEvent
	online map[uuid.UUID]bool
}

type recordedEvent struct {
	room     uuid.UUID
	event    domain.Event
	excluded []uuid.UUID
}

func newFakeBroadcaster() *fakeBroadcaster {
	return &fakeBroadcaster{online: make(map[uuid.UUID]bool)}
}

func (f *fakeBroadcaster) Broadcast(conversationID uuid.UUID, event domain.Event, excludeSessions ...uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, recordedEvent{
		room:     conversationID,
		event:    event,
		excluded: excludeSessions,
	})
}

func (f *fakeBroadcaster) DeliverTo(identity uuid.UUID, event domain.Event) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.online[identity] {
		return false
	}
	f.events = append(f.events, recordedEvent{event: event})
	return true
}

func (f *fakeBroadcaster) IsOnline(identity uuid.UUID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.online[identity]
}

func (f *fakeBroadcaster) OnlineOf(identities []uuid.UUID) []uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []uuid.UUID
	for _, id := range identities {
		if f.online[id] {
			out = append(out, id)
		}
	}
	return out
}

func (f *fakeBroadcaster) setOnline(identity uuid.UUID, online bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.online[identity] = online
}

func (f *fakeBroadcaster) recorded() []recordedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedEvent(nil), f.events...)
}
