package chat

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/marek-sv/bookcircle/internal/models"
	"github.com/marek-sv/bookcircle/internal/repository"
)

// Checker decides whether a user may post into a community right now.
//
// The decision is evaluated fresh on every message — it is never cached
// here. Clients may cache it for greying out an input box; enforcement
// always goes through this path.
type Checker struct {
	communities repository.CommunityRepository
	memberships repository.MembershipRepository
}

func NewChecker(communities repository.CommunityRepository, memberships repository.MembershipRepository) *Checker {
	return &Checker{
		communities: communities,
		memberships: memberships,
	}
}

// CanPost runs the posting rule:
//
//	membership row required; then, if the community restricts
//	messaging, the sender must be an admin OR the community owner.
//
// Ownership is checked independently of role: an owner whose membership
// row still says "member" retains posting rights.
//
// Membership is checked before the community policy, so a non-member
// learns nothing about whether the community even exists.
func (c *Checker) CanPost(ctx context.Context, userID, communityID uuid.UUID) error {
	member, err := c.memberships.GetMember(ctx, communityID, userID)
	if err != nil {
		return fmt.Errorf("lookup membership: %w", err)
	}
	if member == nil {
		return ErrNotMember
	}

	com, err := c.communities.GetByID(ctx, communityID)
	if err != nil {
		return fmt.Errorf("lookup community: %w", err)
	}
	if com == nil {
		return ErrCommunityNotFound
	}

	if !com.RestrictMessaging {
		return nil
	}
	if member.Role == models.RoleAdmin || com.OwnerID == userID {
		return nil
	}
	return ErrMessagingRestricted
}

// CanManage gates community settings changes (e.g. toggling
// restrict_messaging): admins and the owner only, regardless of the
// community's current policy.
func (c *Checker) CanManage(ctx context.Context, userID, communityID uuid.UUID) error {
	com, err := c.communities.GetByID(ctx, communityID)
	if err != nil {
		return fmt.Errorf("lookup community: %w", err)
	}
	if com == nil {
		return ErrCommunityNotFound
	}
	if com.OwnerID == userID {
		return nil
	}

	member, err := c.memberships.GetMember(ctx, communityID, userID)
	if err != nil {
		return fmt.Errorf("lookup membership: %w", err)
	}
	if member == nil {
		return ErrNotMember
	}
	if member.Role == models.RoleAdmin {
		return nil
	}
	return ErrNotAdmin
}
