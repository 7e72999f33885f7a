// Package chat implements the message admission pipeline: the ordered
// sequence of checks a community message passes before it is stored.
package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/marek-sv/bookcircle/internal/models"
	"github.com/marek-sv/bookcircle/internal/ratelimit"
	"github.com/marek-sv/bookcircle/internal/repository"
	"github.com/marek-sv/bookcircle/internal/sanitize"
	"go.uber.org/zap"
)

// touchTimeout bounds the post-send last_active_at update. It runs on a
// fresh context because the request context may already be done by the
// time it fires.
const touchTimeout = 5 * time.Second

// Broadcaster fans a persisted message out to live subscribers.
// Implemented by ws.Hub; a nil-safe no-op keeps the pipeline usable
// without a realtime layer (tests, batch tooling).
type Broadcaster interface {
	Broadcast(communityID uuid.UUID, msg *models.Message)
}

// Service orchestrates a message send:
//
//	validate shape → rate-limit → authorize → escape → persist →
//	(best-effort) touch last_active_at + broadcast
//
// Body length is validated up front, with the request shape: an empty
// or oversized body is always a validation error and never consumes
// rate-limit quota. Only the '<'/'>' escaping waits until after
// authorization, since it is the one step whose output gets stored.
type Service struct {
	memberships repository.MembershipRepository
	messages    repository.MessageRepository
	limiter     ratelimit.Limiter
	authz       *Checker
	hub         Broadcaster
	logger      *zap.Logger
}

func NewService(
	communities repository.CommunityRepository,
	memberships repository.MembershipRepository,
	messages repository.MessageRepository,
	limiter ratelimit.Limiter,
	hub Broadcaster,
	logger *zap.Logger,
) *Service {
	return &Service{
		memberships: memberships,
		messages:    messages,
		limiter:     limiter,
		authz:       NewChecker(communities, memberships),
		hub:         hub,
		logger:      logger,
	}
}

// SendInput carries one admission request. SenderID comes from the
// verified token, never from the request body.
type SendInput struct {
	SenderID    uuid.UUID
	CommunityID uuid.UUID
	Body        string
	Kind        string
	ReplyToID   *int64
}

// Send runs the admission pipeline and returns the persisted message.
// On rejection it returns exactly one of the taxonomy errors
// (ErrInvalidKind, sanitize.ErrLength, *RateLimitError, ErrNotMember,
// ErrCommunityNotFound, ErrMessagingRestricted) or a wrapped internal
// error for storage/limiter failures.
func (s *Service) Send(ctx context.Context, in SendInput) (*models.Message, error) {
	kind := in.Kind
	if kind == "" {
		kind = models.KindText
	}
	switch kind {
	case models.KindText, models.KindImage, models.KindSystem:
	default:
		return nil, ErrInvalidKind
	}

	body, err := sanitize.Validate(in.Body)
	if err != nil {
		return nil, err
	}

	decision, err := s.limiter.Check(ctx, ratelimit.Key{
		UserID:      in.SenderID,
		CommunityID: in.CommunityID,
	})
	if err != nil {
		return nil, fmt.Errorf("rate limit check: %w", err)
	}
	if !decision.Allowed {
		return nil, &RateLimitError{RetryAfter: decision.RetryAfter}
	}

	if err := s.authz.CanPost(ctx, in.SenderID, in.CommunityID); err != nil {
		return nil, err
	}

	msg, err := s.messages.Create(ctx, in.CommunityID, in.SenderID, sanitize.Escape(body), kind, in.ReplyToID)
	if err != nil {
		return nil, fmt.Errorf("persist message: %w", err)
	}

	// The send has succeeded at this point. Everything below is
	// best-effort and must never change the outcome.
	go s.afterSend(msg)

	return msg, nil
}

// afterSend refreshes the sender's activity timestamp and fans the
// message out to live subscribers. Failures are logged, not returned —
// the caller already has their 200.
func (s *Service) afterSend(msg *models.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), touchTimeout)
	defer cancel()

	if err := s.memberships.TouchLastActive(ctx, msg.CommunityID, msg.SenderID); err != nil {
		s.logger.Warn("failed to update member activity",
			zap.String("community_id", msg.CommunityID.String()),
			zap.String("user_id", msg.SenderID.String()),
			zap.Error(err),
		)
	}

	if s.hub != nil {
		s.hub.Broadcast(msg.CommunityID, msg)
	}
}

// History returns a page of a community's messages, newest first.
// Member-only: the same membership rule that gates posting gates
// reading, minus the restrict_messaging policy (read access is never
// restricted for members).
func (s *Service) History(ctx context.Context, userID, communityID uuid.UUID, before int64, limit int) ([]models.Message, error) {
	member, err := s.memberships.GetMember(ctx, communityID, userID)
	if err != nil {
		return nil, fmt.Errorf("lookup membership: %w", err)
	}
	if member == nil {
		return nil, ErrNotMember
	}

	msgs, err := s.messages.ListByCommunity(ctx, communityID, before, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

// Authz exposes the checker for handlers that gate non-message
// operations (settings changes, stream subscriptions).
func (s *Service) Authz() *Checker {
	return s.authz
}
