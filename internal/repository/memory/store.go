// Package memory holds an in-process implementation of the persistence
// gateway. It backs the service tests and the "memory" dev driver; nothing
// survives a restart.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mkrecak/backstage/internal/domain"
)

type Store struct {
	mu            sync.RWMutex
	conversations map[uuid.UUID]*domain.Conversation
	messages      map[uuid.UUID]*domain.Message
	reactions     map[uuid.UUID]map[uuid.UUID]*domain.Reaction // messageID → identity → reaction
}

func NewStore() *Store {
	return &Store{
		conversations: make(map[uuid.UUID]*domain.Conversation),
		messages:      make(map[uuid.UUID]*domain.Message),
		reactions:     make(map[uuid.UUID]map[uuid.UUID]*domain.Reaction),
	}
}

// --- ConversationRepository ---

func (s *Store) Create(ctx context.Context, conv *domain.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *conv
	c.Participants = append([]uuid.UUID(nil), conv.Participants...)
	c.Admins = append([]uuid.UUID(nil), conv.Admins...)
	s.conversations[conv.ID] = &c
	return nil
}

func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[id]
	if !ok {
		return nil, nil
	}
	return copyConversation(conv), nil
}

func (s *Store) GetDirectByPair(ctx context.Context, pairKey string) (*domain.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, conv := range s.conversations {
		if conv.PairKey != nil && *conv.PairKey == pairKey {
			return copyConversation(conv), nil
		}
	}
	return nil, nil
}

func (s *Store) ListByParticipant(ctx context.Context, identity uuid.UUID) ([]domain.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var convs []domain.Conversation
	for _, conv := range s.conversations {
		if conv.HasParticipant(identity) {
			convs = append(convs, *copyConversation(conv))
		}
	}
	sort.Slice(convs, func(i, j int) bool {
		return convs[i].UpdatedAt.After(convs[j].UpdatedAt)
	})
	return convs, nil
}

func (s *Store) Update(ctx context.Context, conv *domain.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.conversations[conv.ID]; ok {
		existing.Name = conv.Name
		existing.Picture = conv.Picture
		existing.UpdatedAt = time.Now()
	}
	return nil
}

func (s *Store) Archive(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conv, ok := s.conversations[id]; ok && conv.ArchivedAt == nil {
		now := time.Now()
		conv.ArchivedAt = &now
		conv.UpdatedAt = now
	}
	return nil
}

func (s *Store) AddParticipant(ctx context.Context, conversationID, identity uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[conversationID]
	if !ok || conv.HasParticipant(identity) {
		return nil
	}
	conv.Participants = append(conv.Participants, identity)
	conv.UpdatedAt = time.Now()
	return nil
}

func (s *Store) RemoveParticipant(ctx context.Context, conversationID, identity uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[conversationID]
	if !ok {
		return nil
	}
	conv.Participants = removeID(conv.Participants, identity)
	conv.Admins = removeID(conv.Admins, identity)
	conv.UpdatedAt = time.Now()
	return nil
}

func (s *Store) SetAdmin(ctx context.Context, conversationID, identity uuid.UUID, admin bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[conversationID]
	if !ok {
		return nil
	}
	if admin {
		if !conv.IsAdmin(identity) {
			conv.Admins = append(conv.Admins, identity)
		}
	} else {
		conv.Admins = removeID(conv.Admins, identity)
	}
	return nil
}

func (s *Store) SetLastMessage(ctx context.Context, conversationID uuid.UUID, summary *domain.MessageSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conv, ok := s.conversations[conversationID]; ok {
		sm := *summary
		conv.LastMessage = &sm
		conv.UpdatedAt = time.Now()
	}
	return nil
}

// --- MessageRepository ---

func (s *Store) CreateMessage(ctx context.Context, msg *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := *msg
	m.ReadBy = append([]domain.ReadReceipt(nil), msg.ReadBy...)
	s.messages[msg.ID] = &m
	return nil
}

func (s *Store) GetMessageByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msg, ok := s.messages[id]
	if !ok {
		return nil, nil
	}
	return copyMessage(msg), nil
}

func (s *Store) ListByConversation(ctx context.Context, conversationID uuid.UUID, before *uuid.UUID, limit int) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var cutoff *time.Time
	if before != nil {
		if anchor, ok := s.messages[*before]; ok {
			cutoff = &anchor.CreatedAt
		} else {
			return nil, nil
		}
	}

	var msgs []domain.Message
	for _, msg := range s.messages {
		if msg.ConversationID != conversationID {
			continue
		}
		if cutoff != nil && !msg.CreatedAt.Before(*cutoff) {
			continue
		}
		msgs = append(msgs, *copyMessage(msg))
	}
	sort.Slice(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

func (s *Store) MarkDelivered(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[id]
	if !ok || msg.State != domain.DeliverySent {
		return false, nil
	}
	msg.State = domain.DeliveryDelivered
	msg.DeliveredAt = &at
	return true, nil
}

func (s *Store) AddReadReceipt(ctx context.Context, id uuid.UUID, receipt domain.ReadReceipt) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[id]
	if !ok || msg.ReadByIdentity(receipt.Identity) {
		return false, nil
	}
	msg.ReadBy = append(msg.ReadBy, receipt)
	return true, nil
}

func (s *Store) CountUnread(ctx context.Context, conversationID, identity uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, msg := range s.messages {
		if msg.ConversationID == conversationID && msg.SenderID != identity && !msg.ReadByIdentity(identity) {
			count++
		}
	}
	return count, nil
}

// --- ReactionRepository ---

func (s *Store) GetReaction(ctx context.Context, messageID, identity uuid.UUID) (*domain.Reaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if byIdentity, ok := s.reactions[messageID]; ok {
		if reaction, ok := byIdentity[identity]; ok {
			r := *reaction
			return &r, nil
		}
	}
	return nil, nil
}

func (s *Store) CreateReaction(ctx context.Context, reaction *domain.Reaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byIdentity, ok := s.reactions[reaction.MessageID]
	if !ok {
		byIdentity = make(map[uuid.UUID]*domain.Reaction)
		s.reactions[reaction.MessageID] = byIdentity
	}
	r := *reaction
	byIdentity[reaction.Identity] = &r
	return nil
}

func (s *Store) DeleteReaction(ctx context.Context, messageID, identity uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if byIdentity, ok := s.reactions[messageID]; ok {
		delete(byIdentity, identity)
	}
	return nil
}

func (s *Store) ListByMessage(ctx context.Context, messageID uuid.UUID) ([]domain.Reaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var reactions []domain.Reaction
	for _, reaction := range s.reactions[messageID] {
		reactions = append(reactions, *reaction)
	}
	sort.Slice(reactions, func(i, j int) bool {
		return reactions[i].CreatedAt.Before(reactions[j].CreatedAt)
	})
	return reactions, nil
}

func (s *Store) CountsByEmoji(ctx context.Context, messageID uuid.UUID) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[string]int)
	for _, reaction := range s.reactions[messageID] {
		counts[reaction.Emoji]++
	}
	return counts, nil
}

func copyConversation(conv *domain.Conversation) *domain.Conversation {
	c := *conv
	c.Participants = append([]uuid.UUID(nil), conv.Participants...)
	c.Admins = append([]uuid.UUID(nil), conv.Admins...)
	if conv.LastMessage != nil {
		sm := *conv.LastMessage
		c.LastMessage = &sm
	}
	return &c
}

func copyMessage(msg *domain.Message) *domain.Message {
	m := *msg
	m.ReadBy = append([]domain.ReadReceipt(nil), msg.ReadBy...)
	return &m
}

func removeID(ids []uuid.UUID, id uuid.UUID) []uuid.UUID {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
