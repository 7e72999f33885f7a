package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/marek-sv/bookcircle/internal/models"
)

// Every method takes context.Context first: these all hit the network,
// and the HTTP request's context cancels the query when the client
// disconnects. The pipeline's post-send bookkeeping passes its own
// short-deadline context instead, since the request may already be
// answered by then.

// CommunityRepository defines the contract for community data operations.
type CommunityRepository interface {
	// Create inserts a new community and returns it with ID and
	// CreatedAt populated. The caller becomes the owner.
	Create(ctx context.Context, ownerID uuid.UUID, name, description string, restrictMessaging bool) (*models.Community, error)

	// GetByID returns a single community. Returns nil, nil if not found.
	GetByID(ctx context.Context, communityID uuid.UUID) (*models.Community, error)

	// List returns all communities, newest first.
	// Returns empty slice (not nil) so JSON serializes to [] not null.
	List(ctx context.Context) ([]models.Community, error)

	// SetRestrictMessaging flips the posting policy for a community.
	SetRestrictMessaging(ctx context.Context, communityID uuid.UUID, restrict bool) error
}

// MembershipRepository handles who belongs to which community.
type MembershipRepository interface {
	// AddMember adds a user to a community with the given role.
	// Idempotent: joining twice is a no-op, not an error.
	AddMember(ctx context.Context, communityID uuid.UUID, userID uuid.UUID, role string) error

	// RemoveMember removes a user from a community. No-op if not a member.
	RemoveMember(ctx context.Context, communityID uuid.UUID, userID uuid.UUID) error

	// ListMembers returns all members of a community.
	ListMembers(ctx context.Context, communityID uuid.UUID) ([]models.Membership, error)

	// GetMember returns one membership row, or nil, nil when the user
	// is not a member. Hot-path lookup — it runs before every message
	// send and stream subscribe, and its result carries the role the
	// authorization rule needs.
	GetMember(ctx context.Context, communityID uuid.UUID, userID uuid.UUID) (*models.Membership, error)

	// TouchLastActive refreshes the member's last_active_at to now.
	// Called best-effort after a successful send.
	TouchLastActive(ctx context.Context, communityID uuid.UUID, userID uuid.UUID) error
}

// MessageRepository handles chat message persistence.
type MessageRepository interface {
	// Create persists a message and returns it with ID and CreatedAt
	// populated. The body must already be sanitized.
	Create(ctx context.Context, communityID uuid.UUID, senderID uuid.UUID, body, kind string, replyToID *int64) (*models.Message, error)

	// ListByCommunity returns messages in a community, newest first.
	// Cursor-based pagination: before=0 means "from the top" (latest).
	ListByCommunity(ctx context.Context, communityID uuid.UUID, before int64, limit int) ([]models.Message, error)
}
