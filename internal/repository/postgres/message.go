package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/marek-sv/bookcircle/internal/models"
)

type MessageStore struct {
	pool *pgxpool.Pool
}

func NewMessageStore(pool *pgxpool.Pool) *MessageStore {
	return &MessageStore{pool: pool}
}

func (s *MessageStore) Create(ctx context.Context, communityID uuid.UUID, senderID uuid.UUID, body, kind string, replyToID *int64) (*models.Message, error) {
	// Messages use bigserial (auto-increment), so we don't pass an ID.
	// Postgres generates it. RETURNING gives it back.
	query := `
		INSERT INTO messages (community_id, sender_id, body, kind, reply_to_id, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		RETURNING id, community_id, sender_id, body, kind, reply_to_id, created_at`

	var msg models.Message
	err := s.pool.QueryRow(ctx, query, communityID, senderID, body, kind, replyToID).Scan(
		&msg.ID,
		&msg.CommunityID,
		&msg.SenderID,
		&msg.Body,
		&msg.Kind,
		&msg.ReplyToID,
		&msg.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return &msg, nil
}

func (s *MessageStore) ListByCommunity(ctx context.Context, communityID uuid.UUID, before int64, limit int) ([]models.Message, error) {
	// Cursor-based pagination:
	//
	// before=0  → first page (newest messages).
	// before=42 → "give me messages older than ID 42".
	//
	// Both paths ORDER BY id DESC: bigserial ids are monotonically
	// increasing, same order as time but cheaper to sort on.

	var query string
	var args []any

	if before > 0 {
		query = `
			SELECT id, community_id, sender_id, body, kind, reply_to_id, created_at
			FROM messages
			WHERE community_id = $1 AND id < $2
			ORDER BY id DESC
			LIMIT $3`
		args = []any{communityID, before, limit}
	} else {
		query = `
			SELECT id, community_id, sender_id, body, kind, reply_to_id, created_at
			FROM messages
			WHERE community_id = $1
			ORDER BY id DESC
			LIMIT $2`
		args = []any{communityID, limit}
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(
			&msg.ID,
			&msg.CommunityID,
			&msg.SenderID,
			&msg.Body,
			&msg.Kind,
			&msg.ReplyToID,
			&msg.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return messages, nil
}
