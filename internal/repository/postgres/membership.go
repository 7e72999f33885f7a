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

type MembershipStore struct {
	pool *pgxpool.Pool
}

func NewMembershipStore(pool *pgxpool.Pool) *MembershipStore {
	return &MembershipStore{pool: pool}
}

func (s *MembershipStore) AddMember(ctx context.Context, communityID uuid.UUID, userID uuid.UUID, role string) error {
	// ON CONFLICT DO NOTHING: "join community" is idempotent. Calling it
	// twice succeeds silently instead of tripping the primary key on
	// (community_id, user_id). The existing role is NOT downgraded by a
	// repeat join.
	query := `
		INSERT INTO community_members (community_id, user_id, role, last_active_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (community_id, user_id) DO NOTHING`

	_, err := s.pool.Exec(ctx, query, communityID, userID, role)
	if err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	return nil
}

func (s *MembershipStore) RemoveMember(ctx context.Context, communityID uuid.UUID, userID uuid.UUID) error {
	// DELETE is naturally idempotent: zero rows deleted is not an error,
	// so "leave community" called twice is fine.
	query := `
		DELETE FROM community_members
		WHERE community_id = $1 AND user_id = $2`

	_, err := s.pool.Exec(ctx, query, communityID, userID)
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	return nil
}

func (s *MembershipStore) ListMembers(ctx context.Context, communityID uuid.UUID) ([]models.Membership, error) {
	query := `
		SELECT community_id, user_id, role, last_active_at
		FROM community_members
		WHERE community_id = $1`

	rows, err := s.pool.Query(ctx, query, communityID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	members := make([]models.Membership, 0)
	for rows.Next() {
		var m models.Membership
		if err := rows.Scan(&m.CommunityID, &m.UserID, &m.Role, &m.LastActiveAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}

	return members, nil
}

func (s *MembershipStore) GetMember(ctx context.Context, communityID uuid.UUID, userID uuid.UUID) (*models.Membership, error) {
	// The authorization rule needs the role, not just existence, so this
	// fetches the row instead of a SELECT EXISTS. Still a single
	// primary-key lookup — fine for the per-message hot path.
	query := `
		SELECT community_id, user_id, role, last_active_at
		FROM community_members
		WHERE community_id = $1 AND user_id = $2`

	var m models.Membership
	err := s.pool.QueryRow(ctx, query, communityID, userID).Scan(
		&m.CommunityID,
		&m.UserID,
		&m.Role,
		&m.LastActiveAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get member: %w", err)
	}
	return &m, nil
}

func (s *MembershipStore) TouchLastActive(ctx context.Context, communityID uuid.UUID, userID uuid.UUID) error {
	query := `
		UPDATE community_members
		SET last_active_at = now()
		WHERE community_id = $1 AND user_id = $2`

	_, err := s.pool.Exec(ctx, query, communityID, userID)
	if err != nil {
		return fmt.Errorf("touch last active: %w", err)
	}
	return nil
}
