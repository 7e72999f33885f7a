package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/marek-sv/bookcircle/internal/chat"
	"github.com/marek-sv/bookcircle/internal/middleware"
	"github.com/marek-sv/bookcircle/internal/models"
	"github.com/marek-sv/bookcircle/internal/repository"
	"go.uber.org/zap"
)

// CommunityHandler holds the dependencies for community CRUD requests.
//
// Handlers depend on repository interfaces, not *postgres.CommunityStore:
// tests pass fakes, and the handler never knows Postgres is behind it.
type CommunityHandler struct {
	communities repository.CommunityRepository
	memberships repository.MembershipRepository
	authz       *chat.Checker
	logger      *zap.Logger
}

func NewCommunityHandler(
	communities repository.CommunityRepository,
	memberships repository.MembershipRepository,
	authz *chat.Checker,
	logger *zap.Logger,
) *CommunityHandler {
	return &CommunityHandler{
		communities: communities,
		memberships: memberships,
		authz:       authz,
		logger:      logger,
	}
}

// createCommunityRequest is a separate struct from models.Community on
// purpose: the client controls name/description/policy and nothing else
// — never id, owner_id or created_at.
type createCommunityRequest struct {
	Name              string `json:"name" binding:"required"`
	Description       string `json:"description"`
	RestrictMessaging bool   `json:"restrict_messaging"`
}

// Create handles POST /v1/communities
//
// The creator becomes the owner AND gets an admin membership row, so
// both halves of the posting rule recognize them from the start.
func (h *CommunityHandler) Create(c *gin.Context) {
	var req createCommunityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ownerID := middleware.GetUserID(c)

	com, err := h.communities.Create(c.Request.Context(), ownerID, req.Name, req.Description, req.RestrictMessaging)
	if err != nil {
		h.logger.Error("failed to create community", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create community"})
		return
	}

	if err := h.memberships.AddMember(c.Request.Context(), com.ID, ownerID, models.RoleAdmin); err != nil {
		h.logger.Error("failed to add owner membership", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create community"})
		return
	}

	c.JSON(http.StatusCreated, com)
}

// List handles GET /v1/communities
func (h *CommunityHandler) List(c *gin.Context) {
	communities, err := h.communities.List(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list communities", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list communities"})
		return
	}

	c.JSON(http.StatusOK, communities)
}

// GetByID handles GET /v1/communities/:id
func (h *CommunityHandler) GetByID(c *gin.Context) {
	communityID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid community id"})
		return
	}

	com, err := h.communities.GetByID(c.Request.Context(), communityID)
	if err != nil {
		h.logger.Error("failed to get community", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get community"})
		return
	}
	if com == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Community not found"})
		return
	}

	c.JSON(http.StatusOK, com)
}

type updateCommunityRequest struct {
	RestrictMessaging *bool `json:"restrict_messaging" binding:"required"`
}

// Update handles PATCH /v1/communities/:id
//
// Only restrict_messaging is mutable here, and only for admins or the
// owner. A pointer field distinguishes "set to false" from "absent".
func (h *CommunityHandler) Update(c *gin.Context) {
	communityID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid community id"})
		return
	}

	var req updateCommunityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := middleware.GetUserID(c)
	if err := h.authz.CanManage(c.Request.Context(), userID, communityID); err != nil {
		switch {
		case errors.Is(err, chat.ErrCommunityNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Community not found"})
		case errors.Is(err, chat.ErrNotMember), errors.Is(err, chat.ErrNotAdmin):
			c.JSON(http.StatusForbidden, gin.H{"error": "Only admins can update community settings"})
		default:
			h.logger.Error("failed to authorize community update", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update community"})
		}
		return
	}

	if err := h.communities.SetRestrictMessaging(c.Request.Context(), communityID, *req.RestrictMessaging); err != nil {
		h.logger.Error("failed to update community", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update community"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
