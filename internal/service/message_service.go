package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/mkrecak/backstage/internal/domain"
	"github.com/mkrecak/backstage/internal/metrics"
	"github.com/mkrecak/backstage/internal/repository"
)

var (
	// ErrMessageNotFound covers both a missing message and a caller who is
	// not a participant of its conversation, for the same reason as
	// ErrConversationNotFound.
	ErrMessageNotFound = errors.New("message not found")
	ErrPersistTimeout  = errors.New("persistence timed out")
)

// Broadcaster pushes real-time events to connected sessions. Implemented by
// the websocket hub; injected after construction because the hub is wired
// later than the services.
type Broadcaster interface {
	// Broadcast delivers an event to every session currently joined to the
	// conversation's room, except the excluded session ids.
	Broadcast(conversationID uuid.UUID, event domain.Event, excludeSessions ...uuid.UUID)
	// DeliverTo delivers an event to every live session of one identity,
	// regardless of room membership. Reports whether at least one session
	// received it.
	DeliverTo(identity uuid.UUID, event domain.Event) bool
	IsOnline(identity uuid.UUID) bool
	OnlineOf(identities []uuid.UUID) []uuid.UUID
}

type MessageService struct {
	messageRepo    repository.MessageRepository
	convRepo       repository.ConversationRepository
	broadcaster    Broadcaster
	persistTimeout time.Duration
}

func NewMessageService(messageRepo repository.MessageRepository, convRepo repository.ConversationRepository, persistTimeout time.Duration) *MessageService {
	return &MessageService{
		messageRepo:    messageRepo,
		convRepo:       convRepo,
		persistTimeout: persistTimeout,
	}
}

// SetBroadcaster sets the real-time broadcaster (optional dependency).
func (s *MessageService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

type SendMessageInput struct {
	Content  string  `json:"content"`
	MediaRef *string `json:"media_ref,omitempty"`
}

type MessageListResponse struct {
	Messages []domain.Message `json:"messages"`
	HasMore  bool             `json:"has_more"`
}

// Send validates membership, persists the message as "sent", then
// broadcasts message.created to the room excluding the originating session.
// Persistence strictly precedes broadcast: a recipient must never observe a
// message it cannot later fetch. A persistence timeout fails closed with no
// broadcast.
func (s *MessageService) Send(ctx context.Context, sender, conversationID uuid.UUID, input SendMessageInput, origin uuid.UUID) (*domain.Message, error) {
	conv, err := s.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil || !conv.HasParticipant(sender) {
		return nil, ErrConversationNotFound
	}
	if conv.IsArchived() {
		return nil, ErrArchived
	}

	msg := &domain.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		SenderID:       sender,
		MediaRef:       input.MediaRef,
		State:          domain.DeliverySent,
		CreatedAt:      time.Now(),
	}
	if input.Content != "" {
		content := input.Content
		msg.Content = &content
	}

	pctx, cancel := context.WithTimeout(ctx, s.persistTimeout)
	defer cancel()
	if err := s.messageRepo.Create(pctx, msg); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			metrics.PersistTimeouts.Inc()
			return nil, ErrPersistTimeout
		}
		return nil, fmt.Errorf("creating message: %w", err)
	}

	summary := &domain.MessageSummary{
		MessageID: msg.ID,
		SenderID:  sender,
		Preview:   msg.Preview(),
		SentAt:    msg.CreatedAt,
	}
	if err := s.convRepo.SetLastMessage(pctx, conversationID, summary); err != nil {
		// The message itself is persisted; a stale summary is recoverable.
		log.Printf("ERROR set last message: %v", err)
	}

	metrics.MessagesSent.Inc()
	if s.broadcaster != nil {
		s.broadcaster.Broadcast(conversationID, domain.MessageCreated{Message: *msg}, origin)
	}

	return msg, nil
}

// MarkDelivered records a recipient session's acknowledgement, driven by
// the websocket message.ack event. Forward-only and idempotent; the
// message.delivered event fires once, on the first transition.
func (s *MessageService) MarkDelivered(ctx context.Context, messageID, recipient uuid.UUID) error {
	msg, conv, err := s.getForParticipant(ctx, messageID, recipient)
	if err != nil {
		return err
	}
	if msg.SenderID == recipient {
		return nil
	}

	now := time.Now()
	changed, err := s.messageRepo.MarkDelivered(ctx, messageID, now)
	if err != nil {
		return fmt.Errorf("marking delivered: %w", err)
	}
	if changed && s.broadcaster != nil {
		s.broadcaster.Broadcast(conv.ID, domain.MessageDelivered{
			ConversationID: conv.ID,
			MessageID:      messageID,
			Recipient:      recipient,
			DeliveredAt:    now,
		})
	}
	return nil
}

// MarkRead records that reader has read the message. A sender marking its
// own message is a no-op success, not an error; repeated marks by the same
// reader are no-op successes that emit no further events.
func (s *MessageService) MarkRead(ctx context.Context, messageID, reader uuid.UUID, origin uuid.UUID) error {
	msg, conv, err := s.getForParticipant(ctx, messageID, reader)
	if err != nil {
		return err
	}
	if msg.SenderID == reader {
		return nil
	}

	now := time.Now()
	pctx, cancel := context.WithTimeout(ctx, s.persistTimeout)
	defer cancel()

	changed, err := s.messageRepo.AddReadReceipt(pctx, messageID, domain.ReadReceipt{
		Identity: reader,
		ReadAt:   now,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			metrics.PersistTimeouts.Inc()
			return ErrPersistTimeout
		}
		return fmt.Errorf("adding read receipt: %w", err)
	}
	if !changed {
		return nil
	}

	// Read implies delivered; catch up the scalar state if an ack was lost.
	if _, err := s.messageRepo.MarkDelivered(pctx, messageID, now); err != nil {
		log.Printf("ERROR mark delivered on read: %v", err)
	}

	if s.broadcaster != nil {
		s.broadcaster.Broadcast(conv.ID, domain.MessageRead{
			ConversationID: conv.ID,
			MessageID:      messageID,
			Reader:         reader,
			ReadAt:         now,
		}, origin)
	}
	return nil
}

func (s *MessageService) UnreadCount(ctx context.Context, conversationID, identity uuid.UUID) (int, error) {
	conv, err := s.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		return 0, err
	}
	if conv == nil || !conv.HasParticipant(identity) {
		return 0, ErrConversationNotFound
	}
	return s.messageRepo.CountUnread(ctx, conversationID, identity)
}

// History is the resync fetch for sessions that joined a room after a
// broadcast, or reconnected. Cursor pagination, chronological order.
func (s *MessageService) History(ctx context.Context, conversationID, identity uuid.UUID, before *uuid.UUID, limit int) (*MessageListResponse, error) {
	conv, err := s.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil || !conv.HasParticipant(identity) {
		return nil, ErrConversationNotFound
	}

	if limit <= 0 || limit > 100 {
		limit = 50
	}

	messages, err := s.messageRepo.ListByConversation(ctx, conversationID, before, limit+1)
	if err != nil {
		return nil, err
	}

	hasMore := len(messages) > limit
	if hasMore {
		messages = messages[len(messages)-limit:]
	}
	if messages == nil {
		messages = []domain.Message{}
	}

	if !conv.IsGroup {
		for i := range messages {
			decorateDirect(&messages[i])
		}
	}

	return &MessageListResponse{
		Messages: messages,
		HasMore:  hasMore,
	}, nil
}

func (s *MessageService) getForParticipant(ctx context.Context, messageID, identity uuid.UUID) (*domain.Message, *domain.Conversation, error) {
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

// decorateDirect fills the scalar read fields a 1:1 conversation exposes.
func decorateDirect(msg *domain.Message) {
	if len(msg.ReadBy) > 0 {
		msg.Read = true
		at := msg.ReadBy[0].ReadAt
		msg.ReadAt = &at
	}
}
