package mongo

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/mkrecak/backstage/internal/domain"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type ReactionRepo struct {
	coll *mongo.Collection
}

func NewReactionRepo(db *mongo.Database) *ReactionRepo {
	return &ReactionRepo{coll: db.Collection(collReactions)}
}

func (r *ReactionRepo) Get(ctx context.Context, messageID, identity uuid.UUID) (*domain.Reaction, error) {
	var doc reactionDoc
	err := r.coll.FindOne(ctx, bson.M{
		"message_id": messageID.String(),
		"identity":   identity.String(),
	}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return doc.toDomain()
}

func (r *ReactionRepo) Create(ctx context.Context, reaction *domain.Reaction) error {
	_, err := r.coll.InsertOne(ctx, reactionDoc{
		MessageID: reaction.MessageID.String(),
		Identity:  reaction.Identity.String(),
		Emoji:     reaction.Emoji,
		CreatedAt: reaction.CreatedAt,
	})
	return err
}

func (r *ReactionRepo) Delete(ctx context.Context, messageID, identity uuid.UUID) error {
	_, err := r.coll.DeleteOne(ctx, bson.M{
		"message_id": messageID.String(),
		"identity":   identity.String(),
	})
	return err
}

func (r *ReactionRepo) ListByMessage(ctx context.Context, messageID uuid.UUID) ([]domain.Reaction, error) {
	opts := options.Find().SetSort(bson.M{"created_at": 1})
	cursor, err := r.coll.Find(ctx, bson.M{"message_id": messageID.String()}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []reactionDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	reactions := make([]domain.Reaction, 0, len(docs))
	for i := range docs {
		reaction, err := docs[i].toDomain()
		if err != nil {
			return nil, err
		}
		reactions = append(reactions, *reaction)
	}
	return reactions, nil
}

func (r *ReactionRepo) CountsByEmoji(ctx context.Context, messageID uuid.UUID) (map[string]int, error) {
	reactions, err := r.ListByMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for _, reaction := range reactions {
		counts[reaction.Emoji]++
	}
	return counts, nil
}
