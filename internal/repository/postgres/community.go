package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/marek-sv/bookcircle/internal/models"
)

type CommunityStore struct {
	pool *pgxpool.Pool
}

func NewCommunityStore(pool *pgxpool.Pool) *CommunityStore {
	return &CommunityStore{pool: pool}
}

func (s *CommunityStore) Create(ctx context.Context, ownerID uuid.UUID, name, description string, restrictMessaging bool) (*models.Community, error) {
	query := `
		INSERT INTO communities (id, name, description, owner_id, restrict_messaging, created_at)
		VALUES (uuid_generate_v4(), $1, $2, $3, $4, now())
		RETURNING id, name, description, owner_id, restrict_messaging, created_at`

	var com models.Community
	err := s.pool.QueryRow(ctx, query, name, description, ownerID, restrictMessaging).Scan(
		&com.ID,
		&com.Name,
		&com.Description,
		&com.OwnerID,
		&com.RestrictMessaging,
		&com.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert community: %w", err)
	}
	return &com, nil
}

func (s *CommunityStore) GetByID(ctx context.Context, communityID uuid.UUID) (*models.Community, error) {
	query := `
		SELECT id, name, description, owner_id, restrict_messaging, created_at
		FROM communities
		WHERE id = $1`

	var com models.Community
	err := s.pool.QueryRow(ctx, query, communityID).Scan(
		&com.ID,
		&com.Name,
		&com.Description,
		&com.OwnerID,
		&com.RestrictMessaging,
		&com.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get community: %w", err)
	}
	return &com, nil
}

func (s *CommunityStore) List(ctx context.Context) ([]models.Community, error) {
	query := `
		SELECT id, name, description, owner_id, restrict_messaging, created_at
		FROM communities
		ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list communities: %w", err)
	}
	defer rows.Close()

	communities := make([]models.Community, 0)
	for rows.Next() {
		var com models.Community
		if err := rows.Scan(
			&com.ID,
			&com.Name,
			&com.Description,
			&com.OwnerID,
			&com.RestrictMessaging,
			&com.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan community: %w", err)
		}
		communities = append(communities, com)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate communities: %w", err)
	}

	return communities, nil
}

func (s *CommunityStore) SetRestrictMessaging(ctx context.Context, communityID uuid.UUID, restrict bool) error {
	query := `
		UPDATE communities
		SET restrict_messaging = $2
		WHERE id = $1`

	_, err := s.pool.Exec(ctx, query, communityID, restrict)
	if err != nil {
		return fmt.Errorf("set restrict_messaging: %w", err)
	}
	return nil
}
