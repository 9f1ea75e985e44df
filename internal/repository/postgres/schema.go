package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Migrate bootstraps the schema. Statements are idempotent so the server
// can run them on every start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS conversations (
			id UUID PRIMARY KEY,
			is_group BOOLEAN NOT NULL,
			name TEXT,
			picture TEXT,
			pair_key TEXT UNIQUE,
			last_message JSONB,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			archived_at TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS conversation_members (
			conversation_id UUID NOT NULL REFERENCES conversations(id),
			identity UUID NOT NULL,
			is_admin BOOLEAN NOT NULL DEFAULT FALSE,
			joined_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (conversation_id, identity)
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id UUID PRIMARY KEY,
			conversation_id UUID NOT NULL REFERENCES conversations(id),
			sender_id UUID NOT NULL,
			content TEXT,
			media_ref TEXT,
			state TEXT NOT NULL DEFAULT 'sent',
			delivered_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation_created
			ON messages (conversation_id, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS message_reads (
			message_id UUID NOT NULL REFERENCES messages(id),
			identity UUID NOT NULL,
			read_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (message_id, identity)
		)`,
		`CREATE TABLE IF NOT EXISTS reactions (
			message_id UUID NOT NULL REFERENCES messages(id),
			identity UUID NOT NULL,
			emoji TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (message_id, identity)
		)`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
