package models

import (
	"time"

	"github.com/google/uuid"
)

// Membership roles. Stored as plain strings — we validate at the
// handler/service layer, not the model layer.
const (
	RoleMember    = "member"
	RoleModerator = "moderator"
	RoleAdmin     = "admin"
)

// Message kinds accepted by the send pipeline.
const (
	KindText   = "text"
	KindImage  = "image"
	KindSystem = "system"
)

// Community is a topic-based group that owns a message stream and a
// membership list (like "#sci-fi-readers").
//
// Why RestrictMessaging?
//   - Open communities: any member may post.
//   - Restricted communities: only admins and the owner may post;
//     everyone else is read-only. This one boolean drives the
//     authorization rule on every message send.
//
// OwnerID lives on the community itself, separate from the membership
// role. Ownership grants posting rights even if the owner's membership
// row was never upgraded to admin.
type Community struct {
	ID                uuid.UUID `json:"id"`
	Name              string    `json:"name"`
	Description       string    `json:"description"`
	OwnerID           uuid.UUID `json:"owner_id"`
	RestrictMessaging bool      `json:"restrict_messaging"`
	CreatedAt         time.Time `json:"created_at"`
}

// Membership is the join table between communities and users.
// A user with no membership row may not post into the community.
//
// LastActiveAt is refreshed (best-effort) after each successful
// message send; it is the only field this service ever mutates.
type Membership struct {
	CommunityID  uuid.UUID `json:"community_id"`
	UserID       uuid.UUID `json:"user_id"`
	Role         string    `json:"role"`
	LastActiveAt time.Time `json:"last_active_at"`
}

// Message is a single chat message in a community.
//
// Why int64 for ID (not UUID)?
//   - Messages are the highest-volume table. bigserial (auto-incrementing
//     int64) is smaller, naturally ordered (higher ID = newer), and
//     index-friendly. Perfect for pagination cursors.
//   - UUIDs stay on entities that can be created anywhere (users,
//     communities); messages always go through this API, so a single
//     sequence is fine.
//
// Body is stored AFTER sanitization: trimmed, length-checked, and with
// '<' / '>' escaped. Messages are never mutated or deleted here.
type Message struct {
	ID          int64     `json:"id"`
	CommunityID uuid.UUID `json:"community_id"`
	SenderID    uuid.UUID `json:"sender_id"`
	Body        string    `json:"body"`
	Kind        string    `json:"kind"`
	ReplyToID   *int64    `json:"reply_to_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
