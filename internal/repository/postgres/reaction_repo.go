package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mkrecak/backstage/internal/domain"
)

type ReactionRepo struct {
	pool *pgxpool.Pool
}

func NewReactionRepo(pool *pgxpool.Pool) *ReactionRepo {
	return &ReactionRepo{pool: pool}
}

func (r *ReactionRepo) Get(ctx context.Context, messageID, identity uuid.UUID) (*domain.Reaction, error) {
	query := `
		SELECT message_id, identity, emoji, created_at
		FROM reactions WHERE message_id = $1 AND identity = $2`
	var reaction domain.Reaction
	err := r.pool.QueryRow(ctx, query, messageID, identity).Scan(
		&reaction.MessageID, &reaction.Identity, &reaction.Emoji, &reaction.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &reaction, nil
}

func (r *ReactionRepo) Create(ctx context.Context, reaction *domain.Reaction) error {
	query := `
		INSERT INTO reactions (message_id, identity, emoji, created_at)
		VALUES ($1, $2, $3, $4)`
	_, err := r.pool.Exec(ctx, query,
		reaction.MessageID, reaction.Identity, reaction.Emoji, reaction.CreatedAt,
	)
	return err
}

func (r *ReactionRepo) Delete(ctx context.Context, messageID, identity uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM reactions WHERE message_id = $1 AND identity = $2`,
		messageID, identity)
	return err
}

func (r *ReactionRepo) ListByMessage(ctx context.Context, messageID uuid.UUID) ([]domain.Reaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT message_id, identity, emoji, created_at
		FROM reactions WHERE message_id = $1 ORDER BY created_at`, messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reactions []domain.Reaction
	for rows.Next() {
		var reaction domain.Reaction
		if err := rows.Scan(
			&reaction.MessageID, &reaction.Identity, &reaction.Emoji, &reaction.CreatedAt,
		); err != nil {
			return nil, err
		}
		reactions = append(reactions, reaction)
	}
	return reactions, rows.Err()
}

func (r *ReactionRepo) CountsByEmoji(ctx context.Context, messageID uuid.UUID) (map[string]int, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT emoji, COUNT(*) FROM reactions WHERE message_id = $1 GROUP BY emoji`, messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var emoji string
		var count int
		if err := rows.Scan(&emoji, &count); err != nil {
			return nil, err
		}
		counts[emoji] = count
	}
	return counts, rows.Err()
}
