package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/marek-sv/bookcircle/internal/auth"
	"github.com/marek-sv/bookcircle/internal/chat"
	"github.com/marek-sv/bookcircle/internal/middleware"
	"github.com/marek-sv/bookcircle/internal/models"
	"github.com/marek-sv/bookcircle/internal/ratelimit"
	"github.com/marek-sv/bookcircle/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

type testServer struct {
	router      *gin.Engine
	communities *memory.CommunityStore
	memberships *memory.MembershipStore
	messages    *memory.MessageStore
}

// newTestServer wires the real router — middleware, service, limiter —
// over in-memory stores, so these tests exercise the same admission
// path production requests take.
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	communities := memory.NewCommunityStore()
	memberships := memory.NewMembershipStore()
	messages := memory.NewMessageStore()
	limiter := ratelimit.NewWindow(10, time.Minute)

	logger := zap.NewNop()
	svc := chat.NewService(communities, memberships, messages, limiter, nil, logger)

	messageHandler := NewMessageHandler(svc, logger)
	communityHandler := NewCommunityHandler(communities, memberships, svc.Authz(), logger)
	membershipHandler := NewMembershipHandler(communities, memberships, logger)

	router := gin.New()
	router.Use(middleware.CORS())
	v1 := router.Group("/v1")
	v1.Use(middleware.AuthMiddleware(testSecret))
	v1.POST("/messages", messageHandler.Send)
	v1.POST("/communities", communityHandler.Create)
	v1.GET("/communities/:id", communityHandler.GetByID)
	v1.PATCH("/communities/:id", communityHandler.Update)
	v1.POST("/communities/:id/join", membershipHandler.Join)
	v1.GET("/communities/:id/messages", messageHandler.List)

	return &testServer{
		router:      router,
		communities: communities,
		memberships: memberships,
		messages:    messages,
	}
}

func (ts *testServer) token(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	token, err := auth.GenerateToken(userID, "reader@example.com", testSecret, time.Hour)
	require.NoError(t, err)
	return token
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

// seedCommunity creates a community with an owner and one plain member.
func (ts *testServer) seedCommunity(t *testing.T, restrict bool) (communityID, ownerID, memberID uuid.UUID) {
	t.Helper()

	ownerID = uuid.New()
	com, err := ts.communities.Create(context.Background(), ownerID, "sci-fi-readers", "weekly reads", restrict)
	require.NoError(t, err)
	require.NoError(t, ts.memberships.AddMember(context.Background(), com.ID, ownerID, models.RoleAdmin))

	memberID = uuid.New()
	require.NoError(t, ts.memberships.AddMember(context.Background(), com.ID, memberID, models.RoleMember))
	return com.ID, ownerID, memberID
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestSendMessageSuccess(t *testing.T) {
	ts := newTestServer(t)
	communityID, _, memberID := ts.seedCommunity(t, false)

	rec := ts.do(t, http.MethodPost, "/v1/messages", ts.token(t, memberID), gin.H{
		"community_id": communityID.String(),
		"message":      "  hello <b>world</b>  ",
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Success bool           `json:"success"`
		Message models.Message `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "hello &lt;b&gt;world&lt;/b&gt;", resp.Message.Body)
	assert.Equal(t, memberID, resp.Message.SenderID)
	assert.NotZero(t, resp.Message.ID)
	assert.False(t, resp.Message.CreatedAt.IsZero())
}

func TestSendMessageMissingAuthHeader(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/v1/messages", "", gin.H{
		"community_id": uuid.New().String(),
		"message":      "hello",
	})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Missing authorization header", errorBody(t, rec)["error"])
}

func TestSendMessageInvalidToken(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/v1/messages", "not-a-real-token", gin.H{
		"community_id": uuid.New().String(),
		"message":      "hello",
	})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Unauthorized", errorBody(t, rec)["error"])
}

func TestSendMessageMissingFields(t *testing.T) {
	ts := newTestServer(t)
	token := ts.token(t, uuid.New())

	for _, body := range []gin.H{
		{},
		{"community_id": uuid.New().String()},
		{"message": "hello"},
	} {
		rec := ts.do(t, http.MethodPost, "/v1/messages", token, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Missing required fields: community_id and message", errorBody(t, rec)["error"])
	}
}

func TestSendMessageBodyTooLong(t *testing.T) {
	ts := newTestServer(t)
	communityID, _, memberID := ts.seedCommunity(t, false)

	rec := ts.do(t, http.MethodPost, "/v1/messages", ts.token(t, memberID), gin.H{
		"community_id": communityID.String(),
		"message":      strings.Repeat("a", 2001),
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Message must be between 1 and 2000 characters", errorBody(t, rec)["error"])
}

func TestSendMessageNotMember(t *testing.T) {
	ts := newTestServer(t)
	communityID, _, _ := ts.seedCommunity(t, false)

	rec := ts.do(t, http.MethodPost, "/v1/messages", ts.token(t, uuid.New()), gin.H{
		"community_id": communityID.String(),
		"message":      "hello",
	})

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "You must be a member of this community to send messages", errorBody(t, rec)["error"])
}

func TestSendMessageCommunityNotFound(t *testing.T) {
	ts := newTestServer(t)

	// A membership row pointing at a community that no longer exists.
	communityID := uuid.New()
	memberID := uuid.New()
	require.NoError(t, ts.memberships.AddMember(context.Background(), communityID, memberID, models.RoleMember))

	rec := ts.do(t, http.MethodPost, "/v1/messages", ts.token(t, memberID), gin.H{
		"community_id": communityID.String(),
		"message":      "hello",
	})

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Community not found", errorBody(t, rec)["error"])
}

func TestSendMessageRestrictedCommunity(t *testing.T) {
	ts := newTestServer(t)
	communityID, ownerID, memberID := ts.seedCommunity(t, true)

	rec := ts.do(t, http.MethodPost, "/v1/messages", ts.token(t, memberID), gin.H{
		"community_id": communityID.String(),
		"message":      "hello",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Only admins can send messages in this community", errorBody(t, rec)["error"])

	rec = ts.do(t, http.MethodPost, "/v1/messages", ts.token(t, ownerID), gin.H{
		"community_id": communityID.String(),
		"message":      "hello",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSendMessageRateLimited(t *testing.T) {
	ts := newTestServer(t)
	communityID, _, memberID := ts.seedCommunity(t, false)
	token := ts.token(t, memberID)

	for i := 1; i <= 10; i++ {
		rec := ts.do(t, http.MethodPost, "/v1/messages", token, gin.H{
			"community_id": communityID.String(),
			"message":      fmt.Sprintf("message %d", i),
		})
		require.Equal(t, http.StatusOK, rec.Code, "send %d should pass", i)
	}

	rec := ts.do(t, http.MethodPost, "/v1/messages", token, gin.H{
		"community_id": communityID.String(),
		"message":      "one too many",
	})

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	body := errorBody(t, rec)
	retryAfter, ok := body["retry_after"].(float64)
	require.True(t, ok, "retry_after must be numeric")
	assert.GreaterOrEqual(t, retryAfter, float64(1))
	assert.LessOrEqual(t, retryAfter, float64(60))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestUnauthenticatedDoesNotConsumeQuota(t *testing.T) {
	ts := newTestServer(t)
	communityID, _, memberID := ts.seedCommunity(t, false)

	// Hammer the endpoint without credentials, then verify the member
	// still has their full window.
	for i := 0; i < 20; i++ {
		rec := ts.do(t, http.MethodPost, "/v1/messages", "", gin.H{
			"community_id": communityID.String(),
			"message":      "hello",
		})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	token := ts.token(t, memberID)
	for i := 1; i <= 10; i++ {
		rec := ts.do(t, http.MethodPost, "/v1/messages", token, gin.H{
			"community_id": communityID.String(),
			"message":      "hello",
		})
		assert.Equal(t, http.StatusOK, rec.Code, "send %d should still be admitted", i)
	}
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/v1/messages", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestListMessages(t *testing.T) {
	ts := newTestServer(t)
	communityID, _, memberID := ts.seedCommunity(t, false)
	token := ts.token(t, memberID)

	for i := 0; i < 3; i++ {
		rec := ts.do(t, http.MethodPost, "/v1/messages", token, gin.H{
			"community_id": communityID.String(),
			"message":      fmt.Sprintf("message %d", i),
		})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := ts.do(t, http.MethodGet, "/v1/communities/"+communityID.String()+"/messages", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var msgs []models.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msgs))
	require.Len(t, msgs, 3)
	assert.Equal(t, "message 2", msgs[0].Body, "newest first")

	// Non-members can't read history.
	rec = ts.do(t, http.MethodGet, "/v1/communities/"+communityID.String()+"/messages", ts.token(t, uuid.New()), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
