package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mkrecak/backstage/internal/domain"
	"github.com/mkrecak/backstage/internal/repository"
)

var ErrInvalidEmoji = errors.New("emoji is not in the allowed set")

const (
	ReactionAdded   = "added"
	ReactionRemoved = "removed"
)

type ReactionService struct {
	reactionRepo repository.ReactionRepository
	messageRepo  repository.MessageRepository
	convRepo     repository.ConversationRepository
	broadcaster  Broadcaster
	toggles      keyedMutex
}

func NewReactionService(reactionRepo repository.ReactionRepository, messageRepo repository.MessageRepository, convRepo repository.ConversationRepository) *ReactionService {
	return &ReactionService{
		reactionRepo: reactionRepo,
		messageRepo:  messageRepo,
		convRepo:     convRepo,
	}
}

func (s *ReactionService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

type ToggleResult struct {
	Action string         `json:"action"`
	Emoji  string         `json:"emoji"`
	Counts map[string]int `json:"counts"`
}

// Toggle flips the (message, identity, emoji) tuple: no existing reaction
// creates one, the same emoji removes it, a different emoji replaces it.
// Toggles from the same identity are serialized on a per-(message,
// identity) lock so a rapid double-tap cannot leave two active reactions;
// different identities never contend beyond the store's composite key.
func (s *ReactionService) Toggle(ctx context.Context, messageID, identity uuid.UUID, emoji string, origin uuid.UUID) (*ToggleResult, error) {
	if !domain.ValidEmoji(emoji) {
		return nil, ErrInvalidEmoji
	}

	msg, conv, err := s.getForParticipant(ctx, messageID, identity)
	if err != nil {
		return nil, err
	}

	unlock := s.toggles.lock(messageID.String() + "/" + identity.String())
	defer unlock()

	existing, err := s.reactionRepo.Get(ctx, messageID, identity)
	if err != nil {
		return nil, err
	}

	result := &ToggleResult{Emoji: emoji}
	switch {
	case existing == nil:
		err = s.reactionRepo.Create(ctx, &domain.Reaction{
			MessageID: messageID,
			Identity:  identity,
			Emoji:     emoji,
			CreatedAt: time.Now(),
		})
		result.Action = ReactionAdded
	case existing.Emoji == emoji:
		err = s.reactionRepo.Delete(ctx, messageID, identity)
		result.Action = ReactionRemoved
	default:
		// A changed reaction is a delete-then-create, never an update.
		if err = s.reactionRepo.Delete(ctx, messageID, identity); err == nil {
			err = s.reactionRepo.Create(ctx, &domain.Reaction{
				MessageID: messageID,
				Identity:  identity,
				Emoji:     emoji,
				CreatedAt: time.Now(),
			})
		}
		result.Action = ReactionAdded
	}
	if err != nil {
		return nil, fmt.Errorf("toggling reaction: %w", err)
	}

	counts, err := s.reactionRepo.CountsByEmoji(ctx, messageID)
	if err != nil {
		return nil, err
	}
	result.Counts = counts

	if s.broadcaster != nil {
		s.broadcaster.Broadcast(conv.ID, domain.ReactionChanged{
			ConversationID: conv.ID,
			MessageID:      msg.ID,
			Identity:       identity,
			Emoji:          emoji,
			Action:         result.Action,
			Counts:         counts,
		}, origin)
	}

	return result, nil
}

type ReactionEntry struct {
	Identity  uuid.UUID `json:"identity"`
	CreatedAt time.Time `json:"created_at"`
}

// GetReactions returns the message's reactions grouped by emoji.
func (s *ReactionService) GetReactions(ctx context.Context, messageID, caller uuid.UUID) (map[string][]ReactionEntry, error) {
	if _, _, err := s.getForParticipant(ctx, messageID, caller); err != nil {
		return nil, err
	}

	reactions, err := s.reactionRepo.ListByMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}

	grouped := make(map[string][]ReactionEntry)
	for _, r := range reactions {
		grouped[r.Emoji] = append(grouped[r.Emoji], ReactionEntry{
			Identity:  r.Identity,
			CreatedAt: r.CreatedAt,
		})
	}
	return grouped, nil
}

func (s *ReactionService) getForParticipant(ctx context.Context, messageID, identity uuid.UUID) (*domain.Message, *domain.Conversation, error) {
	msg, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, nil, err
	}
	if msg == nil {
		return nil, nil, ErrMessageNotFound
	}
	conv, err := s.convRepo.GetByID(ctx, msg.ConversationID)
	if err != nil {
		return nil, nil, err
	}
	if conv == nil || !conv.HasParticipant(identity) {
		return nil, nil, ErrMessageNotFound
	}
	return msg, conv, nil
}

// keyedMutex hands out one mutex per key, dropping entries once the last
// holder releases.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyedLock)
	}
	entry, ok := k.locks[key]
	if !ok {
		entry = &keyedLock{}
		k.locks[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.Lock()
	return func() {
		entry.Unlock()
		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
