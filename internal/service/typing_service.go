package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/mkrecak/backstage/internal/domain"
	"github.com/mkrecak/backstage/internal/repository"
)

// TypingService broadcasts edge-triggered typing signals. Nothing is
// persisted and no server-side expiry timer exists: a client that misses a
// matching stop (sender disconnected abruptly) applies its own timeout.
type TypingService struct {
	convRepo    repository.ConversationRepository
	broadcaster Broadcaster
	limiters    *limiterStore
}

func NewTypingService(convRepo repository.ConversationRepository) *TypingService {
	return &TypingService{
		convRepo: convRepo,
		// Clients are contracted to signal at most once per second; the
		// limiter guards against ones that don't.
		limiters: newLimiterStore(1, 2),
	}
}

func (s *TypingService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// Close stops the limiter cleanup goroutine.
func (s *TypingService) Close() {
	s.limiters.Stop()
}

// Start broadcasts typing.start to the room, excluding the originating
// session. Signals beyond the per-(conversation, identity) rate are
// silently dropped, not errors.
func (s *TypingService) Start(ctx context.Context, conversationID, identity uuid.UUID, origin uuid.UUID) error {
	if err := s.checkParticipant(ctx, conversationID, identity); err != nil {
		return err
	}
	if !s.limiters.Allow(conversationID.String() + "/" + identity.String()) {
		return nil
	}
	if s.broadcaster != nil {
		s.broadcaster.Broadcast(conversationID, domain.TypingStart{
			ConversationID: conversationID,
			Identity:       identity,
		}, origin)
	}
	return nil
}

// Stop broadcasts typing.stop. Stops are never rate limited.
func (s *TypingService) Stop(ctx context.Context, conversationID, identity uuid.UUID, origin uuid.UUID) error {
	if err := s.checkParticipant(ctx, conversationID, identity); err != nil {
		return err
	}
	if s.broadcaster != nil {
		s.broadcaster.Broadcast(conversationID, domain.TypingStop{
			ConversationID: conversationID,
			Identity:       identity,
		}, origin)
	}
	return nil
}

func (s *TypingService) checkParticipant(ctx context.Context, conversationID, identity uuid.UUID) error {
	conv, err := s.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if conv == nil || !conv.HasParticipant(identity) {
		return ErrConversationNotFound
	}
	return nil
}
