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

type MessageRepo struct {
	coll *mongo.Collection
}

func NewMessageRepo(db *mongo.Database) *MessageRepo {
	return &MessageRepo{coll: db.Collection(collMessages)}
}

func (r *MessageRepo) Create(ctx context.Context, msg *domain.Message) error {
	_, err := r.coll.InsertOne(ctx, fromMessage(msg))
	return err
}

func (r *MessageRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	var doc messageDoc
	err := r.coll.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return doc.toDomain()
}

func (r *MessageRepo) ListByConversation(ctx context.Context, conversationID uuid.UUID, before *uuid.UUID, limit int) ([]domain.Message, error) {
	filter := bson.M{"conversation_id": conversationID.String()}
	if before != nil {
		var anchor messageDoc
		err := r.coll.FindOne(ctx, bson.M{"_id": before.String()}).Decode(&anchor)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		filter["created_at"] = bson.M{"$lt": anchor.CreatedAt}
	}

	opts := options.Find().
		SetSort(bson.M{"created_at": -1}).
		SetLimit(int64(limit))

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []messageDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	messages := make([]domain.Message, 0, len(docs))
	for i := range docs {
		msg, err := docs[i].toDomain()
		if err != nil {
			return nil, err
		}
		messages = append(messages, *msg)
	}

	// Reverse to chronological order (query returns newest first)
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

func (r *MessageRepo) MarkDelivered(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id.String(), "state": domain.DeliverySent},
		bson.M{"$set": bson.M{"state": domain.DeliveryDelivered, "delivered_at": at}})
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

func (r *MessageRepo) AddReadReceipt(ctx context.Context, id uuid.UUID, receipt domain.ReadReceipt) (bool, error) {
	// The identity guard in the filter makes repeated marks a no-op, which
	// is what keeps markRead idempotent under this store.
	res, err := r.coll.UpdateOne(ctx,
		bson.M{
			"_id":              id.String(),
			"read_by.identity": bson.M{"$ne": receipt.Identity.String()},
		},
		bson.M{"$push": bson.M{"read_by": readReceiptDoc{
			Identity: receipt.Identity.String(),
			ReadAt:   receipt.ReadAt,
		}}})
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

func (r *MessageRepo) CountUnread(ctx context.Context, conversationID, identity uuid.UUID) (int, error) {
	count, err := r.coll.CountDocuments(ctx, bson.M{
		"conversation_id":  conversationID.String(),
		"sender_id":        bson.M{"$ne": identity.String()},
		"read_by.identity": bson.M{"$ne": identity.String()},
	})
	return int(count), err
}
