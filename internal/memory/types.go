package memory

import (
	"context"
	"time"
)

// Role identifies the author of a cached turn.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAgent    Role = "agent"
)

// Turn is one dialogue turn held in a conversation's working window.
type Turn struct {
	Role      Role
	Content   string
	CreatedAt time.Time
}

// ConversationCache is the short-term dialogue memory consulted during
// context assembly. Implementations must keep the window bounded and must
// serialize operations on the same conversation.
type ConversationCache interface {
	// Window returns the cached turns oldest-first. ok is false on a cold
	// cache, in which case the caller warms it from durable storage.
	Window(ctx context.Context, conversationID string) (turns []Turn, ok bool)
	// Append adds a turn, evicting the oldest entries beyond the bound.
	Append(ctx context.Context, conversationID string, turn Turn)
	// Warm seeds a cold window from durable history.
	Warm(ctx context.Context, conversationID string, turns []Turn)
	// Evict drops a conversation's window.
	Evict(conversationID string)
}
