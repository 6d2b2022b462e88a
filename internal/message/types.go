package message

import (
	"context"
	"time"
)

// Sender identifies who authored a message.
type Sender string

const (
	SenderCustomer Sender = "customer"
	SenderAgent    Sender = "agent"
	SenderSystem   Sender = "system"
)

// Valid reports whether the sender is one of the known variants.
func (s Sender) Valid() bool {
	switch s {
	case SenderCustomer, SenderAgent, SenderSystem:
		return true
	}
	return false
}

// Message is a single persisted conversation turn.
type Message struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversationId"`
	Sender         Sender         `json:"sender"`
	Content        string         `json:"content"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// PersistInput is the input for persisting a message.
type PersistInput struct {
	ConversationID string
	Sender         Sender
	Content        string
	Metadata       map[string]any
}

// Writer defines the write behavior the pipeline needs.
type Writer interface {
	Persist(ctx context.Context, input PersistInput) (Message, error)
}

// Reader defines history reads used by context assembly and the dashboard.
type Reader interface {
	ListLatest(ctx context.Context, conversationID string, limit int) ([]Message, error)
	ListByConversation(ctx context.Context, conversationID string, limit, offset int) ([]Message, error)
}
