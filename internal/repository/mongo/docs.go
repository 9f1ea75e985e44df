// Package mongo implements the persistence gateway against a MongoDB
// document store. Entity ids are stored as canonical UUID strings.
package mongo

import (
	"time"

	"github.com/google/uuid"
	"github.com/mkrecak/backstage/internal/domain"
)

type conversationDoc struct {
	ID           string             `bson:"_id"`
	IsGroup      bool               `bson:"is_group"`
	Name         *string            `bson:"name,omitempty"`
	Picture      *string            `bson:"picture,omitempty"`
	PairKey      *string            `bson:"pair_key,omitempty"`
	Participants []string           `bson:"participants"`
	Admins       []string           `bson:"admins,omitempty"`
	LastMessage  *messageSummaryDoc `bson:"last_message,omitempty"`
	CreatedAt    time.Time          `bson:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at"`
	ArchivedAt   *time.Time         `bson:"archived_at,omitempty"`
}

type messageSummaryDoc struct {
	MessageID string    `bson:"message_id"`
	SenderID  string    `bson:"sender_id"`
	Preview   string    `bson:"preview"`
	SentAt    time.Time `bson:"sent_at"`
}

type messageDoc struct {
	ID             string           `bson:"_id"`
	ConversationID string           `bson:"conversation_id"`
	SenderID       string           `bson:"sender_id"`
	Content        *string          `bson:"content,omitempty"`
	MediaRef       *string          `bson:"media_ref,omitempty"`
	State          string           `bson:"state"`
	DeliveredAt    *time.Time       `bson:"delivered_at,omitempty"`
	ReadBy         []readReceiptDoc `bson:"read_by,omitempty"`
	CreatedAt      time.Time        `bson:"created_at"`
}

type readReceiptDoc struct {
	Identity string    `bson:"identity"`
	ReadAt   time.Time `bson:"read_at"`
}

type reactionDoc struct {
	MessageID string    `bson:"message_id"`
	Identity  string    `bson:"identity"`
	Emoji     string    `bson:"emoji"`
	CreatedAt time.Time `bson:"created_at"`
}

func parseIDs(in []string) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, 0, len(in))
	for _, s := range in {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

func formatIDs(in []uuid.UUID) []string {
	out := make([]string, 0, len(in))
	for _, id := range in {
		out = append(out, id.String())
	}
	return out
}

func fromConversation(conv *domain.Conversation) *conversationDoc {
	doc := &conversationDoc{
		ID:           conv.ID.String(),
		IsGroup:      conv.IsGroup,
		Name:         conv.Name,
		Picture:      conv.Picture,
		PairKey:      conv.PairKey,
		Participants: formatIDs(conv.Participants),
		Admins:       formatIDs(conv.Admins),
		CreatedAt:    conv.CreatedAt,
		UpdatedAt:    conv.UpdatedAt,
		ArchivedAt:   conv.ArchivedAt,
	}
	if conv.LastMessage != nil {
		doc.LastMessage = fromSummary(conv.LastMessage)
	}
	return doc
}

func fromSummary(s *domain.MessageSummary) *messageSummaryDoc {
	return &messageSummaryDoc{
		MessageID: s.MessageID.String(),
		SenderID:  s.SenderID.String(),
		Preview:   s.Preview,
		SentAt:    s.SentAt,
	}
}

func (d *conversationDoc) toDomain() (*domain.Conversation, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, err
	}
	participants, err := parseIDs(d.Participants)
	if err != nil {
		return nil, err
	}
	admins, err := parseIDs(d.Admins)
	if err != nil {
		return nil, err
	}
	conv := &domain.Conversation{
		ID:           id,
		IsGroup:      d.IsGroup,
		Name:         d.Name,
		Picture:      d.Picture,
		PairKey:      d.PairKey,
		Participants: participants,
		Admins:       admins,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
		ArchivedAt:   d.ArchivedAt,
	}
	if d.LastMessage != nil {
		summary, err := d.LastMessage.toDomain()
		if err != nil {
			return nil, err
		}
		conv.LastMessage = summary
	}
	return conv, nil
}

func (d *messageSummaryDoc) toDomain() (*domain.MessageSummary, error) {
	msgID, err := uuid.Parse(d.MessageID)
	if err != nil {
		return nil, err
	}
	senderID, err := uuid.Parse(d.SenderID)
	if err != nil {
		return nil, err
	}
	return &domain.MessageSummary{
		MessageID: msgID,
		SenderID:  senderID,
		Preview:   d.Preview,
		SentAt:    d.SentAt,
	}, nil
}

func fromMessage(msg *domain.Message) *messageDoc {
	doc := &messageDoc{
		ID:             msg.ID.String(),
		ConversationID: msg.ConversationID.String(),
		SenderID:       msg.SenderID.String(),
		Content:        msg.Content,
		MediaRef:       msg.MediaRef,
		State:          msg.State,
		DeliveredAt:    msg.DeliveredAt,
		CreatedAt:      msg.CreatedAt,
	}
	for _, r := range msg.ReadBy {
		doc.ReadBy = append(doc.ReadBy, readReceiptDoc{Identity: r.Identity.String(), ReadAt: r.ReadAt})
	}
	return doc
}

func (d *messageDoc) toDomain() (*domain.Message, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, err
	}
	convID, err := uuid.Parse(d.ConversationID)
	if err != nil {
		return nil, err
	}
	senderID, err := uuid.Parse(d.SenderID)
	if err != nil {
		return nil, err
	}
	msg := &domain.Message{
		ID:             id,
		ConversationID: convID,
		SenderID:       senderID,
		Content:        d.Content,
		MediaRef:       d.MediaRef,
		State:          d.State,
		DeliveredAt:    d.DeliveredAt,
		CreatedAt:      d.CreatedAt,
	}
	for _, r := range d.ReadBy {
		identity, err := uuid.Parse(r.Identity)
		if err != nil {
			return nil, err
		}
		msg.ReadBy = append(msg.ReadBy, domain.ReadReceipt{Identity: identity, ReadAt: r.ReadAt})
	}
	return msg, nil
}

func (d *reactionDoc) toDomain() (*domain.Reaction, error) {
	msgID, err := uuid.Parse(d.MessageID)
	if err != nil {
		return nil, err
	}
	identity, err := uuid.Parse(d.Identity)
	if err != nil {
		return nil, err
	}
	return &domain.Reaction{
		MessageID: msgID,
		Identity:  identity,
		Emoji:     d.Emoji,
		CreatedAt: d.CreatedAt,
	}, nil
}
