package ws

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/mkrecak/backstage/internal/domain"
)

type allowAll struct{}

func (allowAll) CanJoin(context.Context, uuid.UUID, uuid.UUID) error { return nil }

type denyAll struct{}

func (denyAll) CanJoin(context.Context, uuid.UUID, uuid.UUID) error {
	return errors.New("not a participant")
}

func drain(s *Session) int {
	n := 0
	for {
		select {
		case <-s.send:
			n++
		default:
			return n
		}
	}
}

func TestHub_BroadcastExcludesSessions(t *testing.T) {
	hub := NewHub(allowAll{})
	ctx := context.Background()
	room := uuid.New()

	a := hub.Register(uuid.New())
	b := hub.Register(uuid.New())
	c := hub.Register(uuid.New())
	for _, s := range []*Session{a, b, c} {
		if err := hub.JoinRoom(ctx, s, room); err != nil {
			t.Fatalf("join: %v", err)
		}
	}

	hub.Broadcast(room, domain.TypingStart{ConversationID: room, Identity: a.Identity}, a.ID)

	if got := drain(a); got != 0 {
		t.Fatalf("excluded session received %d events", got)
	}
	if drain(b) != 1 || drain(c) != 1 {
		t.Fatalf("other sessions should each receive the event once")
	}
}

func TestHub_JoinDenied(t *testing.T) {
	hub := NewHub(denyAll{})
	s := hub.Register(uuid.New())

	if err := hub.JoinRoom(context.Background(), s, uuid.New()); err == nil {
		t.Fatalf("expected join to be denied")
	}
}

func TestHub_UnregisterLeavesRooms(t *testing.T) {
	hub := NewHub(allowAll{})
	ctx := context.Background()
	room := uuid.New()

	a := hub.Register(uuid.New())
	b := hub.Register(uuid.New())
	if err := hub.JoinRoom(ctx, a, room); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := hub.JoinRoom(ctx, b, room); err != nil {
		t.Fatalf("join: %v", err)
	}

	hub.Unregister(a)
	// Unregister is idempotent.
	hub.Unregister(a)

	select {
	case <-a.Done():
	default:
		t.Fatalf("done channel should be closed after unregister")
	}

	hub.Broadcast(room, domain.TypingStop{ConversationID: room, Identity: b.Identity})
	if drain(a) != 0 {
		t.Fatalf("unregistered session still receives room events")
	}
	if drain(b) != 1 {
		t.Fatalf("remaining session should receive the event")
	}
}

func TestHub_SlowSessionDropped(t *testing.T) {
	hub := NewHub(allowAll{})
	ctx := context.Background()
	room := uuid.New()

	slow := hub.Register(uuid.New())
	healthy := hub.Register(uuid.New())
	if err := hub.JoinRoom(ctx, slow, room); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := hub.JoinRoom(ctx, healthy, room); err != nil {
		t.Fatalf("join: %v", err)
	}

	// Fill the slow session's buffer so the next broadcast cannot enqueue.
	for i := 0; i < sendBufSize; i++ {
		slow.send <- []byte("backlog")
	}

	hub.Broadcast(room, domain.TypingStart{ConversationID: room, Identity: healthy.Identity})

	if drain(healthy) != 1 {
		t.Fatalf("healthy session must receive the event despite the slow peer")
	}
	select {
	case <-slow.Done():
	default:
		t.Fatalf("slow session should have been disconnected")
	}
}

func TestHub_DeliverToAllSessionsOfIdentity(t *testing.T) {
	hub := NewHub(allowAll{})
	identity := uuid.New()

	s1 := hub.Register(identity)
	s2 := hub.Register(identity)
	other := hub.Register(uuid.New())

	if !hub.DeliverTo(identity, domain.FanOutEvent{Kind: "creator.live"}) {
		t.Fatalf("expected delivery to a live identity")
	}
	if drain(s1) != 1 || drain(s2) != 1 {
		t.Fatalf("every session of the identity should receive the event")
	}
	if drain(other) != 0 {
		t.Fatalf("unrelated session received the event")
	}

	if hub.DeliverTo(uuid.New(), domain.FanOutEvent{Kind: "creator.live"}) {
		t.Fatalf("expected no delivery for an offline identity")
	}
}

func TestHub_Presence(t *testing.T) {
	hub := NewHub(allowAll{})
	on, off := uuid.New(), uuid.New()

	s := hub.Register(on)
	if !hub.IsOnline(on) || hub.IsOnline(off) {
		t.Fatalf("presence mismatch")
	}

	online := hub.OnlineOf([]uuid.UUID{on, off})
	if len(online) != 1 || online[0] != on {
		t.Fatalf("expected only the registered identity online, got %v", online)
	}

	hub.Unregister(s)
	if hub.IsOnline(on) {
		t.Fatalf("identity should be offline after its last session unregisters")
	}
}
