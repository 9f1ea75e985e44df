package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mkrecak/backstage/internal/domain"
)

type ConversationRepo struct {
	pool *pgxpool.Pool
}

func NewConversationRepo(pool *pgxpool.Pool) *ConversationRepo {
	return &ConversationRepo{pool: pool}
}

func (r *ConversationRepo) Create(ctx context.Context, conv *domain.Conversation) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var lastMsg []byte
	if conv.LastMessage != nil {
		lastMsg, err = json.Marshal(conv.LastMessage)
		if err != nil {
			return err
		}
	}

	query := `
		INSERT INTO conversations (id, is_group, name, picture, pair_key, last_message, created_at, updated_at, archived_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err = tx.Exec(ctx, query,
		conv.ID, conv.IsGroup, conv.Name, conv.Picture, conv.PairKey, lastMsg,
		conv.CreatedAt, conv.UpdatedAt, conv.ArchivedAt,
	)
	if err != nil {
		return err
	}

	for _, p := range conv.Participants {
		_, err = tx.Exec(ctx, `
			INSERT INTO conversation_members (conversation_id, identity, is_admin, joined_at)
			VALUES ($1, $2, $3, $4)`,
			conv.ID, p, conv.IsAdmin(p), conv.CreatedAt,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *ConversationRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error) {
	return r.getOne(ctx, `
		SELECT id, is_group, name, picture, pair_key, last_message, created_at, updated_at, archived_at
		FROM conversations WHERE id = $1`, id)
}

func (r *ConversationRepo) GetDirectByPair(ctx context.Context, pairKey string) (*domain.Conversation, error) {
	return r.getOne(ctx, `
		SELECT id, is_group, name, picture, pair_key, last_message, created_at, updated_at, archived_at
		FROM conversations WHERE pair_key = $1`, pairKey)
}

func (r *ConversationRepo) getOne(ctx context.Context, query string, arg any) (*domain.Conversation, error) {
	var conv domain.Conversation
	var lastMsg []byte
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&conv.ID, &conv.IsGroup, &conv.Name, &conv.Picture, &conv.PairKey,
		&lastMsg, &conv.CreatedAt, &conv.UpdatedAt, &conv.ArchivedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(lastMsg) > 0 {
		conv.LastMessage = &domain.MessageSummary{}
		if err := json.Unmarshal(lastMsg, conv.LastMessage); err != nil {
			return nil, err
		}
	}
	if err := r.loadMembers(ctx, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *ConversationRepo) loadMembers(ctx context.Context, conv *domain.Conversation) error {
	rows, err := r.pool.Query(ctx, `
		SELECT identity, is_admin FROM conversation_members
		WHERE conversation_id = $1 ORDER BY joined_at`, conv.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var identity uuid.UUID
		var isAdmin bool
		if err := rows.Scan(&identity, &isAdmin); err != nil {
			return err
		}
		conv.Participants = append(conv.Participants, identity)
		if isAdmin {
			conv.Admins = append(conv.Admins, identity)
		}
	}
	return rows.Err()
}

func (r *ConversationRepo) ListByParticipant(ctx context.Context, identity uuid.UUID) ([]domain.Conversation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT c.id, c.is_group, c.name, c.picture, c.pair_key, c.last_message,
			c.created_at, c.updated_at, c.archived_at
		FROM conversations c
		JOIN conversation_members m ON m.conversation_id = c.id
		WHERE m.identity = $1
		ORDER BY c.updated_at DESC`, identity)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var convs []domain.Conversation
	for rows.Next() {
		var conv domain.Conversation
		var lastMsg []byte
		if err := rows.Scan(
			&conv.ID, &conv.IsGroup, &conv.Name, &conv.Picture, &conv.PairKey,
			&lastMsg, &conv.CreatedAt, &conv.UpdatedAt, &conv.ArchivedAt,
		); err != nil {
			return nil, err
		}
		if len(lastMsg) > 0 {
			conv.LastMessage = &domain.MessageSummary{}
			if err := json.Unmarshal(lastMsg, conv.LastMessage); err != nil {
				return nil, err
			}
		}
		convs = append(convs, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range convs {
		if err := r.loadMembers(ctx, &convs[i]); err != nil {
			return nil, err
		}
	}
	return convs, nil
}

func (r *ConversationRepo) Update(ctx context.Context, conv *domain.Conversation) error {
	query := `UPDATE conversations SET name = $1, picture = $2, updated_at = $3 WHERE id = $4`
	_, err := r.pool.Exec(ctx, query, conv.Name, conv.Picture, time.Now(), conv.ID)
	return err
}

func (r *ConversationRepo) Archive(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE conversations SET archived_at = $1, updated_at = $1 WHERE id = $2 AND archived_at IS NULL`,
		time.Now(), id)
	return err
}

func (r *ConversationRepo) AddParticipant(ctx context.Context, conversationID, identity uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO conversation_members (conversation_id, identity, is_admin, joined_at)
		VALUES ($1, $2, FALSE, $3)
		ON CONFLICT (conversation_id, identity) DO NOTHING`,
		conversationID, identity, time.Now())
	return err
}

func (r *ConversationRepo) RemoveParticipant(ctx context.Context, conversationID, identity uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM conversation_members WHERE conversation_id = $1 AND identity = $2`,
		conversationID, identity)
	return err
}

func (r *ConversationRepo) SetAdmin(ctx context.Context, conversationID, identity uuid.UUID, admin bool) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE conversation_members SET is_admin = $1 WHERE conversation_id = $2 AND identity = $3`,
		admin, conversationID, identity)
	return err
}

func (r *ConversationRepo) SetLastMessage(ctx context.Context, conversationID uuid.UUID, summary *domain.MessageSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx,
		`UPDATE conversations SET last_message = $1, updated_at = $2 WHERE id = $3`,
		data, time.Now(), conversationID)
	return err
}
