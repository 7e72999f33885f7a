package chat

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/marek-sv/bookcircle/internal/models"
	"github.com/marek-sv/bookcircle/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanPostOpenCommunity(t *testing.T) {
	communities := memory.NewCommunityStore()
	memberships := memory.NewMembershipStore()
	checker := NewChecker(communities, memberships)

	owner := uuid.New()
	com, err := communities.Create(context.Background(), owner, "book-swap", "", false)
	require.NoError(t, err)

	member := uuid.New()
	require.NoError(t, memberships.AddMember(context.Background(), com.ID, member, models.RoleMember))

	assert.NoError(t, checker.CanPost(context.Background(), member, com.ID),
		"membership alone suffices when messaging is unrestricted")
	assert.ErrorIs(t, checker.CanPost(context.Background(), uuid.New(), com.ID), ErrNotMember)
}

func TestCanPostChecksMembershipBeforeCommunity(t *testing.T) {
	checker := NewChecker(memory.NewCommunityStore(), memory.NewMembershipStore())

	// Unknown community, unknown user: the membership denial comes
	// first, so callers can't probe which communities exist.
	err := checker.CanPost(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, ErrNotMember)
}

func TestCanManage(t *testing.T) {
	communities := memory.NewCommunityStore()
	memberships := memory.NewMembershipStore()
	checker := NewChecker(communities, memberships)

	owner := uuid.New()
	com, err := communities.Create(context.Background(), owner, "book-swap", "", false)
	require.NoError(t, err)

	admin := uuid.New()
	moderator := uuid.New()
	plain := uuid.New()
	require.NoError(t, memberships.AddMember(context.Background(), com.ID, admin, models.RoleAdmin))
	require.NoError(t, memberships.AddMember(context.Background(), com.ID, moderator, models.RoleModerator))
	require.NoError(t, memberships.AddMember(context.Background(), com.ID, plain, models.RoleMember))

	assert.NoError(t, checker.CanManage(context.Background(), owner, com.ID),
		"owner manages without any membership row")
	assert.NoError(t, checker.CanManage(context.Background(), admin, com.ID))
	assert.ErrorIs(t, checker.CanManage(context.Background(), moderator, com.ID), ErrNotAdmin,
		"moderators do not manage settings")
	assert.ErrorIs(t, checker.CanManage(context.Background(), plain, com.ID), ErrNotAdmin)
	assert.ErrorIs(t, checker.CanManage(context.Background(), plain, uuid.New()), ErrCommunityNotFound)
}
