package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mkrecak/backstage/internal/domain"
)

type MessageRepo struct {
	pool *pgxpool.Pool
}

func NewMessageRepo(pool *pgxpool.Pool) *MessageRepo {
	return &MessageRepo{pool: pool}
}

func (r *MessageRepo) Create(ctx context.Context, msg *domain.Message) error {
	query := `
		INSERT INTO messages (id, conversation_id, sender_id, content, media_ref, state, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.pool.Exec(ctx, query,
		msg.ID, msg.ConversationID, msg.SenderID, msg.Content, msg.MediaRef, msg.State, msg.CreatedAt,
	)
	return err
}

func (r *MessageRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	query := `
		SELECT id, conversation_id, sender_id, content, media_ref, state, delivered_at, created_at
		FROM messages WHERE id = $1`
	var msg domain.Message
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.Content, &msg.MediaRef,
		&msg.State, &msg.DeliveredAt, &msg.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := r.loadReceipts(ctx, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *MessageRepo) loadReceipts(ctx context.Context, msg *domain.Message) error {
	rows, err := r.pool.Query(ctx,
		`SELECT identity, read_at FROM message_reads WHERE message_id = $1 ORDER BY read_at`, msg.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var rec domain.ReadReceipt
		if err := rows.Scan(&rec.Identity, &rec.ReadAt); err != nil {
			return err
		}
		msg.ReadBy = append(msg.ReadBy, rec)
	}
	return rows.Err()
}

func (r *MessageRepo) ListByConversation(ctx context.Context, conversationID uuid.UUID, before *uuid.UUID, limit int) ([]domain.Message, error) {
	var query string
	var args []any

	if before != nil {
		query = fmt.Sprintf(`
			SELECT id, conversation_id, sender_id, content, media_ref, state, delivered_at, created_at
			FROM messages
			WHERE conversation_id = $1
				AND created_at < (SELECT created_at FROM messages WHERE id = $2)
			ORDER BY created_at DESC
			LIMIT %d`, limit)
		args = []any{conversationID, *before}
	} else {
		query = fmt.Sprintf(`
			SELECT id, conversation_id, sender_id, content, media_ref, state, delivered_at, created_at
			FROM messages
			WHERE conversation_id = $1
			ORDER BY created_at DESC
			LIMIT %d`, limit)
		args = []any{conversationID}
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var msg domain.Message
		if err := rows.Scan(
			&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.Content, &msg.MediaRef,
			&msg.State, &msg.DeliveredAt, &msg.CreatedAt,
		); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range messages {
		if err := r.loadReceipts(ctx, &messages[i]); err != nil {
			return nil, err
		}
	}

	// Reverse to chronological order (query returns DESC)
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

func (r *MessageRepo) MarkDelivered(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE messages SET state = $1, delivered_at = $2 WHERE id = $3 AND state = $4`,
		domain.DeliveryDelivered, at, id, domain.DeliverySent)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *MessageRepo) AddReadReceipt(ctx context.Context, id uuid.UUID, receipt domain.ReadReceipt) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO message_reads (message_id, identity, read_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (message_id, identity) DO NOTHING`,
		id, receipt.Identity, receipt.ReadAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *MessageRepo) CountUnread(ctx context.Context, conversationID, identity uuid.UUID) (int, error) {
	query := `
		SELECT COUNT(*) FROM messages m
		WHERE m.conversation_id = $1 AND m.sender_id <> $2
			AND NOT EXISTS (
				SELECT 1 FROM message_reads r
				WHERE r.message_id = m.id AND r.identity = $2
			)`
	var count int
	err := r.pool.QueryRow(ctx, query, conversationID, identity).Scan(&count)
	return count, err
}
