package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/mkrecak/backstage/internal/domain"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	collConversations = "conversations"
	collMessages      = "messages"
	collReactions     = "reactions"
)

type ConversationRepo struct {
	coll *mongo.Collection
}

func NewConversationRepo(db *mongo.Database) *ConversationRepo {
	return &ConversationRepo{coll: db.Collection(collConversations)}
}

func (r *ConversationRepo) Create(ctx context.Context, conv *domain.Conversation) error {
	_, err := r.coll.InsertOne(ctx, fromConversation(conv))
	return err
}

func (r *ConversationRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error) {
	return r.getOne(ctx, bson.M{"_id": id.String()})
}

func (r *ConversationRepo) GetDirectByPair(ctx context.Context, pairKey string) (*domain.Conversation, error) {
	return r.getOne(ctx, bson.M{"pair_key": pairKey})
}

func (r *ConversationRepo) getOne(ctx context.Context, filter bson.M) (*domain.Conversation, error) {
	var doc conversationDoc
	err := r.coll.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return doc.toDomain()
}

func (r *ConversationRepo) ListByParticipant(ctx context.Context, identity uuid.UUID) ([]domain.Conversation, error) {
	opts := options.Find().SetSort(bson.M{"updated_at": -1})
	cursor, err := r.coll.Find(ctx, bson.M{"participants": identity.String()}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []conversationDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	convs := make([]domain.Conversation, 0, len(docs))
	for i := range docs {
		conv, err := docs[i].toDomain()
		if err != nil {
			return nil, err
		}
		convs = append(convs, *conv)
	}
	return convs, nil
}

func (r *ConversationRepo) Update(ctx context.Context, conv *domain.Conversation) error {
	update := bson.M{"$set": bson.M{
		"name":       conv.Name,
		"picture":    conv.Picture,
		"updated_at": time.Now(),
	}}
	_, err := r.coll.UpdateOne(ctx, bson.M{"_id": conv.ID.String()}, update)
	return err
}

func (r *ConversationRepo) Archive(ctx context.Context, id uuid.UUID) error {
	now := time.Now()
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id.String(), "archived_at": bson.M{"$exists": false}},
		bson.M{"$set": bson.M{"archived_at": now, "updated_at": now}})
	return err
}

func (r *ConversationRepo) AddParticipant(ctx context.Context, conversationID, identity uuid.UUID) error {
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": conversationID.String()},
		bson.M{
			"$addToSet": bson.M{"participants": identity.String()},
			"$set":      bson.M{"updated_at": time.Now()},
		})
	return err
}

func (r *ConversationRepo) RemoveParticipant(ctx context.Context, conversationID, identity uuid.UUID) error {
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": conversationID.String()},
		bson.M{
			"$pull": bson.M{"participants": identity.String(), "admins": identity.String()},
			"$set":  bson.M{"updated_at": time.Now()},
		})
	return err
}

func (r *ConversationRepo) SetAdmin(ctx context.Context, conversationID, identity uuid.UUID, admin bool) error {
	var update bson.M
	if admin {
		update = bson.M{"$addToSet": bson.M{"admins": identity.String()}}
	} else {
		update = bson.M{"$pull": bson.M{"admins": identity.String()}}
	}
	_, err := r.coll.UpdateOne(ctx, bson.M{"_id": conversationID.String()}, update)
	return err
}

func (r *ConversationRepo) SetLastMessage(ctx context.Context, conversationID uuid.UUID, summary *domain.MessageSummary) error {
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": conversationID.String()},
		bson.M{"$set": bson.M{"last_message": fromSummary(summary), "updated_at": time.Now()}})
	return err
}
