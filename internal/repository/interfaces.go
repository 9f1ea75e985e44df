package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mkrecak/backstage/internal/domain"
)

// The repositories below form the persistence gateway: a narrow interface
// to the document store with no business logic. Lookups that find nothing
// return (nil, nil); callers decide what absence means.

type ConversationRepository interface {
	Create(ctx context.Context, conv *domain.Conversation) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error)
	GetDirectByPair(ctx context.Context, pairKey string) (*domain.Conversation, error)
	ListByParticipant(ctx context.Context, identity uuid.UUID) ([]domain.Conversation, error)
	Update(ctx context.Context, conv *domain.Conversation) error
	Archive(ctx context.Context, id uuid.UUID) error
	AddParticipant(ctx context.Context, conversationID, identity uuid.UUID) error
	RemoveParticipant(ctx context.Context, conversationID, identity uuid.UUID) error
	SetAdmin(ctx context.Context, conversationID, identity uuid.UUID, admin bool) error
	SetLastMessage(ctx context.Context, conversationID uuid.UUID, summary *domain.MessageSummary) error
}

type MessageRepository interface {
	Create(ctx context.Context, msg *domain.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error)
	ListByConversation(ctx context.Context, conversationID uuid.UUID, before *uuid.UUID, limit int) ([]domain.Message, error)
	// MarkDelivered transitions sent → delivered. It is forward-only and
	// reports whether the state actually changed.
	MarkDelivered(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	// AddReadReceipt records a per-recipient read. It reports false when the
	// receipt already existed, which makes markRead idempotent.
	AddReadReceipt(ctx context.Context, id uuid.UUID, receipt domain.ReadReceipt) (bool, error)
	CountUnread(ctx context.Context, conversationID, identity uuid.UUID) (int, error)
}

type ReactionRepository interface {
	Get(ctx context.Context, messageID, identity uuid.UUID) (*domain.Reaction, error)
	Create(ctx context.Context, reaction *domain.Reaction) error
	Delete(ctx context.Context, messageID, identity uuid.UUID) error
	ListByMessage(ctx context.Context, messageID uuid.UUID) ([]domain.Reaction, error)
	CountsByEmoji(ctx context.Context, messageID uuid.UUID) (map[string]int, error)
}
