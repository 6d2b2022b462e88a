package conversation

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/botdesk/botdesk/internal/channels"
	dbpkg "github.com/botdesk/botdesk/internal/db"
	"github.com/botdesk/botdesk/internal/platform"
)

// Store is the persistence surface the resolver needs.
type Store interface {
	FindActive(ctx context.Context, channelID, externalID string) (Conversation, error)
	Create(ctx context.Context, input CreateInput) (Conversation, error)
}

// Resolver maps an inbound sender identity to exactly one active
// conversation, creating it on first contact.
type Resolver struct {
	store  Store
	logger *slog.Logger
}

// NewResolver creates a resolver backed by the given store.
func NewResolver(log *slog.Logger, store Store) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{
		store:  store,
		logger: log.With(slog.String("service", "resolver")),
	}
}

// Resolve returns the active conversation for the message's sender on the
// given channel, opening one if none exists. Concurrent resolution of the
// same identity is serialized by the store's unique constraint: the loser of
// a create race re-reads and returns the winner's row, so duplicate webhook
// deliveries never fork a conversation.
func (r *Resolver) Resolve(ctx context.Context, ch channels.Channel, msg platform.InboundMessage) (Conversation, error) {
	externalID := strings.TrimSpace(msg.SenderID)
	if externalID == "" {
		return Conversation{}, &platform.NormalizationError{Platform: msg.Platform, Reason: "missing sender id"}
	}
	if !ch.IsActive {
		return Conversation{}, &ConfigurationError{ChannelID: ch.ID, Reason: "channel is inactive"}
	}
	if strings.TrimSpace(ch.AgentID) == "" {
		return Conversation{}, &ConfigurationError{ChannelID: ch.ID, Reason: "no agent bound to channel"}
	}

	existing, err := r.store.FindActive(ctx, ch.ID, externalID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Conversation{}, err
	}

	created, err := r.store.Create(ctx, CreateInput{
		TenantID:     ch.TenantID,
		ChannelID:    ch.ID,
		AgentID:      ch.AgentID,
		ExternalID:   externalID,
		CustomerName: strings.TrimSpace(msg.SenderName),
	})
	if err == nil {
		r.logger.Info("conversation opened",
			slog.String("conversation_id", created.ID),
			slog.String("channel_id", ch.ID),
			slog.String("external_id", externalID))
		return created, nil
	}
	if dbpkg.IsUniqueViolation(err) {
		// Lost the race to a concurrent webhook delivery.
		return r.store.FindActive(ctx, ch.ID, externalID)
	}
	return Conversation{}, err
}
