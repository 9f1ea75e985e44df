package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/mkrecak/backstage/internal/domain"
	"github.com/mkrecak/backstage/internal/repository/memory"
)

func newConversationService() (*ConversationService, *memory.Store) {
	store := memory.NewStore()
	return NewConversationService(store.Conversations()), store
}

func TestCreateDirect_IdempotentByPair(t *testing.T) {
	svc, _ := newConversationService()
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()

	first, err := svc.CreateDirect(ctx, a, b)
	if err != nil {
		t.Fatalf("create direct: %v", err)
	}

	// Same pair in reverse order must yield the same conversation.
	second, err := svc.CreateDirect(ctx, b, a)
	if err != nil {
		t.Fatalf("repeat create direct: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected same conversation, got %s and %s", first.ID, second.ID)
	}
}

func TestCreateDirect_SelfRejected(t *testing.T) {
	svc, _ := newConversationService()
	a := uuid.New()

	if _, err := svc.CreateDirect(context.Background(), a, a); !errors.Is(err, ErrSelfConversation) {
		t.Fatalf("expected ErrSelfConversation, got %v", err)
	}
}

func TestCreateGroup_CreatorIsAdmin(t *testing.T) {
	svc, _ := newConversationService()
	creator := uuid.New()

	conv, err := svc.CreateGroup(context.Background(), creator, []uuid.UUID{uuid.New(), uuid.New()}, "launch crew")
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	if !conv.IsAdmin(creator) {
		t.Fatalf("creator should be admin")
	}
	if len(conv.Participants) != 3 {
		t.Fatalf("expected 3 participants, got %d", len(conv.Participants))
	}
}

func TestCreateGroup_TooFewMembers(t *testing.T) {
	svc, _ := newConversationService()
	creator := uuid.New()

	// Duplicates of the creator collapse to a single participant.
	if _, err := svc.CreateGroup(context.Background(), creator, []uuid.UUID{creator}, "solo"); !errors.Is(err, ErrTooFewMembers) {
		t.Fatalf("expected ErrTooFewMembers, got %v", err)
	}
}

func TestAddMember_CapEnforced(t *testing.T) {
	svc, _ := newConversationService()
	ctx := context.Background()
	creator := uuid.New()

	members := make([]uuid.UUID, domain.GroupMemberCap-1)
	for i := range members {
		members[i] = uuid.New()
	}
	conv, err := svc.CreateGroup(ctx, creator, members, "everyone")
	if err != nil {
		t.Fatalf("create group at cap: %v", err)
	}

	if err := svc.AddMember(ctx, conv.ID, creator, uuid.New()); !errors.Is(err, ErrGroupFull) {
		t.Fatalf("expected ErrGroupFull, got %v", err)
	}

	got, err := svc.Get(ctx, creator, conv.ID)
	if err != nil {
		t.Fatalf("get group: %v", err)
	}
	if len(got.Participants) != domain.GroupMemberCap {
		t.Fatalf("participant count changed on rejected add: %d", len(got.Participants))
	}
}

func TestAddMember_NonAdminForbidden(t *testing.T) {
	svc, _ := newConversationService()
	ctx := context.Background()
	creator, member := uuid.New(), uuid.New()

	conv, err := svc.CreateGroup(ctx, creator, []uuid.UUID{member}, "duo")
	if err != nil {
		t.Fatalf("create group: %v", err)
	}

	if err := svc.AddMember(ctx, conv.ID, member, uuid.New()); !errors.Is(err, ErrNotAdmin) {
		t.Fatalf("expected ErrNotAdmin, got %v", err)
	}
}

func TestRemoveMember_LastAdminBlocked(t *testing.T) {
	svc, _ := newConversationService()
	ctx := context.Background()
	creator, member := uuid.New(), uuid.New()

	conv, err := svc.CreateGroup(ctx, creator, []uuid.UUID{member}, "duo")
	if err != nil {
		t.Fatalf("create group: %v", err)
	}

	// The sole admin cannot leave while another member remains.
	if err := svc.RemoveMember(ctx, conv.ID, creator, creator); !errors.Is(err, ErrLastAdmin) {
		t.Fatalf("expected ErrLastAdmin, got %v", err)
	}

	// After promoting a replacement, leaving is allowed.
	if err := svc.PromoteAdmin(ctx, conv.ID, creator, member); err != nil {
		t.Fatalf("promote: %v", err)
	}
	if err := svc.RemoveMember(ctx, conv.ID, creator, creator); err != nil {
		t.Fatalf("leave after promoting replacement: %v", err)
	}

	got, err := svc.Get(ctx, member, conv.ID)
	if err != nil {
		t.Fatalf("get group: %v", err)
	}
	if got.HasParticipant(creator) {
		t.Fatalf("creator should have left the group")
	}
}

func TestRemoveMember_SelfLeaveWithoutAdmin(t *testing.T) {
	svc, _ := newConversationService()
	ctx := context.Background()
	creator, member := uuid.New(), uuid.New()

	conv, err := svc.CreateGroup(ctx, creator, []uuid.UUID{member, uuid.New()}, "trio")
	if err != nil {
		t.Fatalf("create group: %v", err)
	}

	if err := svc.RemoveMember(ctx, conv.ID, member, member); err != nil {
		t.Fatalf("self-leave should not require admin: %v", err)
	}
}

func TestDemoteAdmin_LastAdminBlocked(t *testing.T) {
	svc, _ := newConversationService()
	ctx := context.Background()
	creator, member := uuid.New(), uuid.New()

	conv, err := svc.CreateGroup(ctx, creator, []uuid.UUID{member}, "duo")
	if err != nil {
		t.Fatalf("create group: %v", err)
	}

	if err := svc.DemoteAdmin(ctx, conv.ID, creator, creator); !errors.Is(err, ErrLastAdmin) {
		t.Fatalf("expected ErrLastAdmin, got %v", err)
	}
}

func TestGet_NonParticipantSeesNotFound(t *testing.T) {
	svc, _ := newConversationService()
	ctx := context.Background()

	conv, err := svc.CreateDirect(ctx, uuid.New(), uuid.New())
	if err != nil {
		t.Fatalf("create direct: %v", err)
	}

	// An outsider gets the same answer as for a conversation that does not
	// exist.
	if _, err := svc.Get(ctx, uuid.New(), conv.ID); !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("expected ErrConversationNotFound, got %v", err)
	}
	if _, err := svc.Get(ctx, uuid.New(), uuid.New()); !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("expected ErrConversationNotFound for missing id, got %v", err)
	}
}

func TestArchive_Rules(t *testing.T) {
	svc, _ := newConversationService()
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()

	direct, err := svc.CreateDirect(ctx, a, b)
	if err != nil {
		t.Fatalf("create direct: %v", err)
	}
	// Either side of a direct conversation may archive it.
	if err := svc.Archive(ctx, direct.ID, b); err != nil {
		t.Fatalf("archive direct: %v", err)
	}

	creator, member := uuid.New(), uuid.New()
	group, err := svc.CreateGroup(ctx, creator, []uuid.UUID{member}, "duo")
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	if err := svc.Archive(ctx, group.ID, member); !errors.Is(err, ErrNotAdmin) {
		t.Fatalf("expected ErrNotAdmin for non-admin archive, got %v", err)
	}
	if err := svc.Archive(ctx, group.ID, creator); err != nil {
		t.Fatalf("admin archive: %v", err)
	}
	// Archiving twice stays a no-op success.
	if err := svc.Archive(ctx, group.ID, creator); err != nil {
		t.Fatalf("repeat archive: %v", err)
	}
}
