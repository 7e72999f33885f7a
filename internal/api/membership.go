package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/marek-sv/bookcircle/internal/middleware"
	"github.com/marek-sv/bookcircle/internal/models"
	"github.com/marek-sv/bookcircle/internal/repository"
	"go.uber.org/zap"
)

type MembershipHandler struct {
	communities repository.CommunityRepository
	memberships repository.MembershipRepository
	logger      *zap.Logger
}

func NewMembershipHandler(
	communities repository.CommunityRepository,
	memberships repository.MembershipRepository,
	logger *zap.Logger,
) *MembershipHandler {
	return &MembershipHandler{
		communities: communities,
		memberships: memberships,
		logger:      logger,
	}
}

// Join handles POST /v1/communities/:id/join
//
// New joiners always get the plain "member" role. Role upgrades are an
// admin operation, not something a joiner requests. The underlying
// insert is idempotent, so re-joining never fails and never downgrades
// an existing role.
func (h *MembershipHandler) Join(c *gin.Context) {
	communityID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid community id"})
		return
	}

	com, err := h.communities.GetByID(c.Request.Context(), communityID)
	if err != nil {
		h.logger.Error("failed to get community", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to join community"})
		return
	}
	if com == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Community not found"})
		return
	}

	userID := middleware.GetUserID(c)
	if err := h.memberships.AddMember(c.Request.Context(), communityID, userID, models.RoleMember); err != nil {
		h.logger.Error("failed to add member", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to join community"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Leave handles POST /v1/communities/:id/leave
func (h *MembershipHandler) Leave(c *gin.Context) {
	communityID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid community id"})
		return
	}

	userID := middleware.GetUserID(c)
	if err := h.memberships.RemoveMember(c.Request.Context(), communityID, userID); err != nil {
		h.logger.Error("failed to remove member", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to leave community"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ListMembers handles GET /v1/communities/:id/members
func (h *MembershipHandler) ListMembers(c *gin.Context) {
	communityID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid community id"})
		return
	}

	members, err := h.memberships.ListMembers(c.Request.Context(), communityID)
	if err != nil {
		h.logger.Error("failed to list members", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list members"})
		return
	}

	c.JSON(http.StatusOK, members)
}
