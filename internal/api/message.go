package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/marek-sv/bookcircle/internal/chat"
	"github.com/marek-sv/bookcircle/internal/middleware"
	"github.com/marek-sv/bookcircle/internal/sanitize"
	"go.uber.org/zap"
)

type MessageHandler struct {
	svc    *chat.Service
	logger *zap.Logger
}

func NewMessageHandler(svc *chat.Service, logger *zap.Logger) *MessageHandler {
	return &MessageHandler{svc: svc, logger: logger}
}

type sendMessageRequest struct {
	CommunityID string `json:"community_id" binding:"required"`
	Message     string `json:"message" binding:"required"`
	MessageType string `json:"message_type"`
	ReplyToID   *int64 `json:"reply_to_id"`
}

// Send handles POST /v1/messages
//
// The response bodies here are a published contract — clients display
// the error strings verbatim, and the 429 carries both a Retry-After
// header and a machine-readable retry_after field.
func (h *MessageHandler) Send(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields: community_id and message"})
		return
	}
	communityID, err := uuid.Parse(req.CommunityID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid community_id"})
		return
	}

	msg, err := h.svc.Send(c.Request.Context(), chat.SendInput{
		SenderID:    middleware.GetUserID(c),
		CommunityID: communityID,
		Body:        req.Message,
		Kind:        req.MessageType,
		ReplyToID:   req.ReplyToID,
	})
	if err != nil {
		h.rejectSend(c, err)
		return
	}

	// 200 (not 201): the success shape is part of the same published
	// contract as the rejections above.
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": msg,
	})
}

// rejectSend maps each pipeline rejection to its status and stable body.
func (h *MessageHandler) rejectSend(c *gin.Context, err error) {
	var rateErr *chat.RateLimitError

	switch {
	case errors.Is(err, sanitize.ErrLength):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message must be between 1 and 2000 characters"})
	case errors.Is(err, chat.ErrInvalidKind):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid message_type"})
	case errors.As(err, &rateErr):
		c.Header("Retry-After", strconv.Itoa(rateErr.RetryAfter))
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":       "Rate limit exceeded. Please wait before sending more messages",
			"retry_after": rateErr.RetryAfter,
		})
	case errors.Is(err, chat.ErrNotMember):
		c.JSON(http.StatusForbidden, gin.H{"error": "You must be a member of this community to send messages"})
	case errors.Is(err, chat.ErrCommunityNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Community not found"})
	case errors.Is(err, chat.ErrMessagingRestricted):
		c.JSON(http.StatusForbidden, gin.H{"error": "Only admins can send messages in this community"})
	default:
		h.logger.Error("failed to send message", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to send message",
			"details": err.Error(),
		})
	}
}

// List handles GET /v1/communities/:id/messages?before=123&limit=50
//
// Cursor-based pagination:
//   - "before" = message ID. "Give me messages older than this." 0 = start from latest.
//   - "limit"  = how many to return. Default 50, capped at 100.
func (h *MessageHandler) List(c *gin.Context) {
	communityID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid community id"})
		return
	}

	var before int64
	if b := c.Query("before"); b != "" {
		before, err = strconv.ParseInt(b, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'before' parameter"})
			return
		}
	}

	limit := 50
	if l := c.Query("limit"); l != "" {
		limit, err = strconv.Atoi(l)
		if err != nil || limit < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'limit' parameter"})
			return
		}
		if limit > 100 {
			limit = 100
		}
	}

	messages, err := h.svc.History(c.Request.Context(), middleware.GetUserID(c), communityID, before, limit)
	if err != nil {
		if errors.Is(err, chat.ErrNotMember) {
			c.JSON(http.StatusForbidden, gin.H{"error": "You must be a member of this community to view messages"})
			return
		}
		h.logger.Error("failed to list messages", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list messages"})
		return
	}

	c.JSON(http.StatusOK, messages)
}
