package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// EnsureIndexes creates the uniqueness and query indexes the gateway relies
// on. Called once at startup; index creation is idempotent.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	// Canonical pair key keeps direct conversations idempotent by
	// participant pair. Sparse: group conversations carry no pair_key.
	_, err := db.Collection(collConversations).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "pair_key", Value: 1}},
		Options: options.Index().SetUnique(true).SetSparse(true),
	})
	if err != nil {
		return fmt.Errorf("creating conversations index: %w", err)
	}

	_, err = db.Collection(collConversations).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "participants", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("creating participants index: %w", err)
	}

	_, err = db.Collection(collMessages).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "created_at", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("creating messages index: %w", err)
	}

	// Composite uniqueness: one reaction per (message, identity). Concurrent
	// writers from different identities never conflict on this key.
	_, err = db.Collection(collReactions).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "message_id", Value: 1}, {Key: "identity", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("creating reactions index: %w", err)
	}

	return nil
}
