package memory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mkrecak/backstage/internal/domain"
	"github.com/mkrecak/backstage/internal/repository"
)

// The repository interfaces use the same method names across entities, so
// the shared Store is exposed through thin per-entity views.

func (s *Store) Conversations() repository.ConversationRepository { return &conversationView{s} }
func (s *Store) Messages() repository.MessageRepository           { return &messageView{s} }
func (s *Store) Reactions() repository.ReactionRepository         { return &reactionView{s} }

type conversationView struct{ *Store }

type messageView struct{ s *Store }

func (v *messageView) Create(ctx context.Context, msg *domain.Message) error {
	return v.s.CreateMessage(ctx, msg)
}

func (v *messageView) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	return v.s.GetMessageByID(ctx, id)
}

func (v *messageView) ListByConversation(ctx context.Context, conversationID uuid.UUID, before *uuid.UUID, limit int) ([]domain.Message, error) {
	return v.s.ListByConversation(ctx, conversationID, before, limit)
}

func (v *messageView) MarkDelivered(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	return v.s.MarkDelivered(ctx, id, at)
}

func (v *messageView) AddReadReceipt(ctx context.Context, id uuid.UUID, receipt domain.ReadReceipt) (bool, error) {
	return v.s.AddReadReceipt(ctx, id, receipt)
}

func (v *messageView) CountUnread(ctx context.Context, conversationID, identity uuid.UUID) (int, error) {
	return v.s.CountUnread(ctx, conversationID, identity)
}

type reactionView struct{ s *Store }

func (v *reactionView) Get(ctx context.Context, messageID, identity uuid.UUID) (*domain.Reaction, error) {
	return v.s.GetReaction(ctx, messageID, identity)
}

func (v *reactionView) Create(ctx context.Context, reaction *domain.Reaction) error {
	return v.s.CreateReaction(ctx, reaction)
}

func (v *reactionView) Delete(ctx context.Context, messageID, identity uuid.UUID) error {
	return v.s.DeleteReaction(ctx, messageID, identity)
}

func (v *reactionView) ListByMessage(ctx context.Context, messageID uuid.UUID) ([]domain.Reaction, error) {
	return v.s.ListByMessage(ctx, messageID)
}

func (v *reactionView) CountsByEmoji(ctx context.Context, messageID uuid.UUID) (map[string]int, error) {
	return v.s.CountsByEmoji(ctx, messageID)
}
