package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/mkrecak/backstage/internal/domain"
	"github.com/mkrecak/backstage/internal/repository/memory"
)

func newTypingFixture(t *testing.T) (*TypingService, *fakeBroadcaster, uuid.UUID, uuid.UUID, uuid.UUID) {
	t.Helper()
	store := memory.NewStore()
	convSvc := NewConversationService(store.Conversations())
	svc := NewTypingService(store.Conversations())
	t.Cleanup(svc.Close)
	bc := newFakeBroadcaster()
	svc.SetBroadcaster(bc)

	a, b := uuid.New(), uuid.New()
	conv, err := convSvc.CreateDirect(context.Background(), a, b)
	if err != nil {
		t.Fatalf("create direct: %v", err)
	}
	return svc, bc, conv.ID, a, b
}

func TestTypingStart_ExcludesOrigin(t *testing.T) {
	svc, bc, convID, a, _ := newTypingFixture(t)
	origin := uuid.New()

	if err := svc.Start(context.Background(), convID, a, origin); err != nil {
		t.Fatalf("start: %v", err)
	}

	events := bc.recorded()
	if len(events) != 1 {
		t.Fatalf("expected one broadcast, got %d", len(events))
	}
	if _, ok := events[0].event.(domain.TypingStart); !ok {
		t.Fatalf("expected TypingStart, got %T", events[0].event)
	}
	if len(events[0].excluded) != 1 || events[0].excluded[0] != origin {
		t.Fatalf("originating session was not excluded: %v", events[0].excluded)
	}
}

func TestTypingStart_RateLimited(t *testing.T) {
	svc, bc, convID, a, _ := newTypingFixture(t)
	ctx := context.Background()

	// Burst of 2, then silently dropped; never an error.
	for i := 0; i < 5; i++ {
		if err := svc.Start(ctx, convID, a, uuid.Nil); err != nil {
			t.Fatalf("start #%d: %v", i, err)
		}
	}

	if got := len(bc.recorded()); got != 2 {
		t.Fatalf("expected 2 broadcasts within burst, got %d", got)
	}
}

func TestTypingStop_NeverLimited(t *testing.T) {
	svc, bc, convID, a, _ := newTypingFixture(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := svc.Stop(ctx, convID, a, uuid.Nil); err != nil {
			t.Fatalf("stop #%d: %v", i, err)
		}
	}
	if got := len(bc.recorded()); got != 5 {
		t.Fatalf("expected all stops broadcast, got %d", got)
	}
}

func TestTyping_NonParticipant(t *testing.T) {
	svc, _, convID, _, _ := newTypingFixture(t)

	if err := svc.Start(context.Background(), convID, uuid.New(), uuid.Nil); !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("expected ErrConversationNotFound, got %v", err)
	}
}
