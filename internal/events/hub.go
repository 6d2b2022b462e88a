// Package events fans conversation activity out to dashboard subscribers.
// Publishing is fire-and-forget: a slow or absent subscriber never blocks
// the message pipeline.
package events

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Event types published by the pipeline and stores.
const (
	TypeMessageCreated      = "message.created"
	TypeConversationOpened  = "conversation.opened"
	TypeConversationUpdated = "conversation.updated"
)

// Event is a tenant-scoped notification.
type Event struct {
	Type           string          `json:"type"`
	TenantID       string          `json:"tenantId"`
	ConversationID string          `json:"conversationId,omitempty"`
	Data           json.RawMessage `json:"data,omitempty"`
}

const subscriberBuffer = 64

// Hub routes events to per-tenant subscriber channels.
type Hub struct {
	logger *slog.Logger
	mu     sync.RWMutex
	subs   map[string]map[chan Event]struct{} // tenant id -> subscribers
}

// NewHub creates an event hub.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		logger: log.With(slog.String("service", "events")),
		subs:   make(map[string]map[chan Event]struct{}),
	}
}

// Subscribe registers a buffered channel for a tenant's events. The caller
// must call the returned cancel func when done.
func (h *Hub) Subscribe(tenantID string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	h.mu.Lock()
	if h.subs[tenantID] == nil {
		h.subs[tenantID] = make(map[chan Event]struct{})
	}
	h.subs[tenantID][ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if set, ok := h.subs[tenantID]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(h.subs, tenantID)
			}
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber of its tenant. Events to
// subscribers with full buffers are dropped.
func (h *Hub) Publish(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[event.TenantID] {
		select {
		case ch <- event:
		default:
			h.logger.Warn("dropping event for slow subscriber",
				slog.String("type", event.Type),
				slog.String("tenant_id", event.TenantID))
		}
	}
}
