package conversation

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a conversation.
type Status string

const (
	// StatusActive marks the single open conversation per (channel,
	// external identity). Inbound messages attach here.
	StatusActive Status = "active"
	// StatusResolved marks a closed conversation. Resolved conversations
	// never reopen; a returning customer gets a fresh one.
	StatusResolved Status = "resolved"
)

// Conversation is a dialogue between one external customer identity and one
// agent on one channel.
type Conversation struct {
	ID            string         `json:"id"`
	TenantID      string         `json:"tenantId"`
	ChannelID     string         `json:"channelId"`
	AgentID       string         `json:"agentId"`
	ExternalID    string         `json:"externalId"`
	Status        Status         `json:"status"`
	Priority      string         `json:"priority"`
	CustomerName  string         `json:"customerName,omitempty"`
	CustomerEmail string         `json:"customerEmail,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

// ConfigurationError reports tenant misconfiguration discovered while
// resolving a conversation, such as an inactive channel or a channel with no
// agent bound. It is terminal for the affected message but carries enough
// context to point an operator at the broken record.
type ConfigurationError struct {
	ChannelID string
	Reason    string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error on channel %s: %s", e.ChannelID, e.Reason)
}
