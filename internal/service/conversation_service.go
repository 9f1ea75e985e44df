package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mkrecak/backstage/internal/domain"
	"github.com/mkrecak/backstage/internal/repository"
)

var (
	// ErrConversationNotFound is returned both when a conversation does not
	// exist and when the caller is not a participant: non-participants must
	// not learn whether a conversation exists.
	ErrConversationNotFound = errors.New("conversation not found")
	ErrSelfConversation     = errors.New("cannot start a conversation with yourself")
	ErrNotGroup             = errors.New("conversation is not a group")
	ErrNotAdmin             = errors.New("only a group admin can perform this action")
	ErrLastAdmin            = errors.New("group would be left without an admin")
	ErrGroupFull            = errors.New("group participant cap reached")
	ErrTooFewMembers        = errors.New("a group needs at least one other member")
	ErrAlreadyMember        = errors.New("identity is already a participant")
	ErrTargetNotMember      = errors.New("identity is not a participant")
	ErrArchived             = errors.New("conversation is archived")
)

type ConversationService struct {
	convRepo repository.ConversationRepository
}

func NewConversationService(convRepo repository.ConversationRepository) *ConversationService {
	return &ConversationService{convRepo: convRepo}
}

// CreateDirect finds or creates the 1:1 conversation between a and b,
// idempotent by participant pair via the canonical pair key.
func (s *ConversationService) CreateDirect(ctx context.Context, a, b uuid.UUID) (*domain.Conversation, error) {
	if a == b {
		return nil, ErrSelfConversation
	}

	pairKey := domain.DirectPairKey(a, b)
	conv, err := s.convRepo.GetDirectByPair(ctx, pairKey)
	if err != nil {
		return nil, err
	}
	if conv != nil {
		return conv, nil
	}

	now := time.Now()
	conv = &domain.Conversation{
		ID:           uuid.New(),
		IsGroup:      false,
		Participants: []uuid.UUID{a, b},
		PairKey:      &pairKey,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.convRepo.Create(ctx, conv); err != nil {
		// A concurrent CreateDirect for the same pair can lose the race on
		// the unique pair key; fall back to the winner's row.
		existing, getErr := s.convRepo.GetDirectByPair(ctx, pairKey)
		if getErr == nil && existing != nil {
			return existing, nil
		}
		return nil, fmt.Errorf("creating direct conversation: %w", err)
	}

	return conv, nil
}

// CreateGroup creates a group conversation with the creator as its first admin.
func (s *ConversationService) CreateGroup(ctx context.Context, creator uuid.UUID, members []uuid.UUID, name string) (*domain.Conversation, error) {
	participants := []uuid.UUID{creator}
	for _, m := range members {
		if m == creator {
			continue
		}
		dup := false
		for _, p := range participants {
			if p == m {
				dup = true
				break
			}
		}
		if !dup {
			participants = append(participants, m)
		}
	}

	if len(participants) < 2 {
		return nil, ErrTooFewMembers
	}
	if len(participants) > domain.GroupMemberCap {
		return nil, ErrGroupFull
	}

	now := time.Now()
	conv := &domain.Conversation{
		ID:           uuid.New(),
		IsGroup:      true,
		Name:         &name,
		Participants: participants,
		Admins:       []uuid.UUID{creator},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.convRepo.Create(ctx, conv); err != nil {
		return nil, fmt.Errorf("creating group: %w", err)
	}

	return conv, nil
}

// Get returns a conversation for one of its participants.
func (s *ConversationService) Get(ctx context.Context, caller, conversationID uuid.UUID) (*domain.Conversation, error) {
	conv, err := s.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil || !conv.HasParticipant(caller) {
		return nil, ErrConversationNotFound
	}
	return conv, nil
}

func (s *ConversationService) List(ctx context.Context, caller uuid.UUID) ([]domain.Conversation, error) {
	convs, err := s.convRepo.ListByParticipant(ctx, caller)
	if err != nil {
		return nil, err
	}
	if convs == nil {
		convs = []domain.Conversation{}
	}
	return convs, nil
}

// CanJoin is the room authorizer the connection registry consults before a
// session joins a conversation room. Membership is checked here, never
// trusted from the client.
func (s *ConversationService) CanJoin(ctx context.Context, conversationID, identity uuid.UUID) error {
	_, err := s.Get(ctx, identity, conversationID)
	return err
}

func (s *ConversationService) AddMember(ctx context.Context, groupID, actor, target uuid.UUID) error {
	conv, err := s.getGroup(ctx, actor, groupID)
	if err != nil {
		return err
	}
	if !conv.IsAdmin(actor) {
		return ErrNotAdmin
	}
	if conv.HasParticipant(target) {
		return ErrAlreadyMember
	}
	if len(conv.Participants) >= domain.GroupMemberCap {
		return ErrGroupFull
	}
	return s.convRepo.AddParticipant(ctx, groupID, target)
}

// RemoveMember removes target from a group. Admins may remove anyone;
// anyone may remove themselves. Removing the last admin while other
// members remain is rejected: a replacement admin has to be promoted first.
// Removal never deletes the target's authored messages.
func (s *ConversationService) RemoveMember(ctx context.Context, groupID, actor, target uuid.UUID) error {
	conv, err := s.getGroup(ctx, actor, groupID)
	if err != nil {
		return err
	}
	if actor != target && !conv.IsAdmin(actor) {
		return ErrNotAdmin
	}
	if !conv.HasParticipant(target) {
		return ErrTargetNotMember
	}
	if conv.IsAdmin(target) && len(conv.Admins) == 1 && len(conv.Participants) > 1 {
		return ErrLastAdmin
	}
	return s.convRepo.RemoveParticipant(ctx, groupID, target)
}

func (s *ConversationService) PromoteAdmin(ctx context.Context, groupID, actor, target uuid.UUID) error {
	conv, err := s.getGroup(ctx, actor, groupID)
	if err != nil {
		return err
	}
	if !conv.IsAdmin(actor) {
		return ErrNotAdmin
	}
	if !conv.HasParticipant(target) {
		return ErrTargetNotMember
	}
	if conv.IsAdmin(target) {
		return nil
	}
	return s.convRepo.SetAdmin(ctx, groupID, target, true)
}

func (s *ConversationService) DemoteAdmin(ctx context.Context, groupID, actor, target uuid.UUID) error {
	conv, err := s.getGroup(ctx, actor, groupID)
	if err != nil {
		return err
	}
	if !conv.IsAdmin(actor) {
		return ErrNotAdmin
	}
	if !conv.IsAdmin(target) {
		return ErrTargetNotMember
	}
	if len(conv.Admins) == 1 {
		return ErrLastAdmin
	}
	return s.convRepo.SetAdmin(ctx, groupID, target, false)
}

type UpdateGroupInput struct {
	Name    *string `json:"name"`
	Picture *string `json:"picture"`
}

func (s *ConversationService) UpdateGroup(ctx context.Context, groupID, actor uuid.UUID, input UpdateGroupInput) (*domain.Conversation, error) {
	conv, err := s.getGroup(ctx, actor, groupID)
	if err != nil {
		return nil, err
	}
	if !conv.IsAdmin(actor) {
		return nil, ErrNotAdmin
	}

	if input.Name != nil {
		conv.Name = input.Name
	}
	if input.Picture != nil {
		conv.Picture = input.Picture
	}

	if err := s.convRepo.Update(ctx, conv); err != nil {
		return nil, fmt.Errorf("updating group: %w", err)
	}
	return conv, nil
}

// Archive soft-retires a conversation; archived conversations reject new
// sends but keep their history. Either participant may archive a direct
// conversation, only an admin a group.
func (s *ConversationService) Archive(ctx context.Context, conversationID, actor uuid.UUID) error {
	conv, err := s.Get(ctx, actor, conversationID)
	if err != nil {
		return err
	}
	if conv.IsGroup && !conv.IsAdmin(actor) {
		return ErrNotAdmin
	}
	if conv.IsArchived() {
		return nil
	}
	return s.convRepo.Archive(ctx, conversationID)
}

func (s *ConversationService) getGroup(ctx context.Context, actor, groupID uuid.UUID) (*domain.Conversation, error) {
	conv, err := s.Get(ctx, actor, groupID)
	if err != nil {
		return nil, err
	}
	if !conv.IsGroup {
		return nil, ErrNotGroup
	}
	return conv, nil
}
