package ws

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/marek-sv/bookcircle/internal/middleware"
	"github.com/marek-sv/bookcircle/internal/repository"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Handler upgrades GET /v1/communities/:id/stream to a WebSocket and
// relays the community's accepted messages to the connection.
//
// The subscription is membership-gated with the same lookup the send
// pipeline uses; the gate runs before the upgrade so a non-member gets
// a proper 403 instead of a dropped socket.
type Handler struct {
	hub         *Hub
	memberships repository.MembershipRepository
	logger      *zap.Logger
	upgrader    websocket.Upgrader
}

func NewHandler(hub *Hub, memberships repository.MembershipRepository, logger *zap.Logger) *Handler {
	return &Handler{
		hub:         hub,
		memberships: memberships,
		logger:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browser origins are unrestricted, same as the CORS policy.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Serve handles GET /v1/communities/:id/stream
func (h *Handler) Serve(c *gin.Context) {
	communityID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid community id"})
		return
	}
	userID := middleware.GetUserID(c)

	member, err := h.memberships.GetMember(c.Request.Context(), communityID, userID)
	if err != nil {
		h.logger.Error("failed to check membership for stream", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to subscribe"})
		return
	}
	if member == nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "You must be a member of this community to view messages"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote an HTTP error to the client.
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	sub := h.hub.Subscribe(communityID)
	h.logger.Info("stream subscribed",
		zap.String("community_id", communityID.String()),
		zap.String("user_id", userID.String()),
		zap.String("email", middleware.GetEmail(c)),
	)

	go h.readPump(conn, sub)
	h.writePump(conn, sub)
}

// readPump drains the connection. The stream is one-way — clients post
// through the HTTP pipeline, not the socket — so incoming frames are
// discarded; the loop exists to process pongs and notice disconnects.
func (h *Handler) readPump(conn *websocket.Conn, sub *Subscription) {
	defer func() {
		sub.Close()
		conn.Close()
	}()

	conn.SetReadLimit(1024)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump pushes broadcast frames and keepalive pings until the
// subscription or the connection dies.
func (h *Handler) writePump(conn *websocket.Conn, sub *Subscription) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		sub.Close()
		conn.Close()
	}()

	for {
		select {
		case frame, ok := <-sub.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
