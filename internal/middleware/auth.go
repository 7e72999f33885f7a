package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/marek-sv/bookcircle/internal/auth"
)

// Context keys for storing claims in gin.Context.
//
// Constants instead of inline strings: a typo in c.Get("usr_id")
// compiles fine and silently returns nil; with constants the compiler
// catches it, and handlers and middleware agree on the same keys.
const (
	ContextKeyUserID = "user_id"
	ContextKeyEmail  = "email"
)

// AuthMiddleware returns a gin middleware that validates bearer tokens.
//
// It runs before every protected handler. If the token is missing or
// invalid it aborts the chain with a 401 and the handler never runs;
// otherwise the claims land in the request context for handlers to read
// via GetUserID / GetEmail.
//
// The secret is a parameter (not read from config here) so main.go does
// the wiring and tests can pass any secret.
//
// The rejection bodies are part of the public API contract:
// "Missing authorization header" when no header was sent at all,
// "Unauthorized" when a header was sent but the token doesn't check out.
// Clients display these strings directly, so they are stable.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Missing authorization header",
			})
			return
		}

		// Expected format: "Bearer eyJhbGciOi..."
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Unauthorized",
			})
			return
		}

		claims, err := auth.ParseToken(parts[1], secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Unauthorized",
			})
			return
		}

		c.Set(ContextKeyUserID, claims.UserID)
		c.Set(ContextKeyEmail, claims.Email)

		c.Next()
	}
}

// GetUserID extracts the authenticated user's ID from the request
// context. Returns uuid.Nil if the middleware never ran — a safe zero
// value that fails any membership lookup gracefully.
func GetUserID(c *gin.Context) uuid.UUID {
	val, exists := c.Get(ContextKeyUserID)
	if !exists {
		return uuid.Nil
	}
	id, ok := val.(uuid.UUID)
	if !ok {
		return uuid.Nil
	}
	return id
}

func GetEmail(c *gin.Context) string {
	val, exists := c.Get(ContextKeyEmail)
	if !exists {
		return ""
	}
	email, ok := val.(string)
	if !ok {
		return ""
	}
	return email
}
