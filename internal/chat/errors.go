package chat

import (
	"errors"
	"fmt"
)

// Rejection taxonomy for the message admission pipeline. Every send
// either returns the persisted message or exactly one of these; the API
// layer maps each to a status code and a stable response body. No step
// retries — a transient failure surfaces immediately and the client
// decides what to do.
var (
	// ErrCommunityNotFound: the target community does not exist.
	ErrCommunityNotFound = errors.New("community not found")

	// ErrNotMember: the sender has no membership row for the community.
	ErrNotMember = errors.New("sender is not a member of the community")

	// ErrMessagingRestricted: the community restricts messaging and the
	// sender is neither an admin nor the owner.
	ErrMessagingRestricted = errors.New("messaging is restricted to admins")

	// ErrNotAdmin: a settings change attempted by someone who is
	// neither an admin nor the owner.
	ErrNotAdmin = errors.New("caller is not a community admin")

	// ErrInvalidKind: unknown message_type.
	ErrInvalidKind = errors.New("invalid message kind")
)

// RateLimitError is returned when the sender has exhausted their
// admission window for the community. RetryAfter is whole seconds until
// the window resets, for the Retry-After header and response body.
type RateLimitError struct {
	RetryAfter int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %ds", e.RetryAfter)
}
