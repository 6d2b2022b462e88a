package channels

import (
	"time"

	"github.com/botdesk/botdesk/internal/platform"
)

// Channel binds a platform account to a tenant and an agent. Its secret
// verifies webhook signatures; its credentials authorize outbound sends.
type Channel struct {
	ID                string               `json:"id"`
	TenantID          string               `json:"tenantId"`
	AgentID           string               `json:"agentId,omitempty"`
	Platform          platform.Platform    `json:"platform"`
	ExternalAccountID string               `json:"externalAccountId,omitempty"`
	Credentials       platform.Credentials `json:"-"`
	Secret            string               `json:"-"`
	VerifyToken       string               `json:"-"`
	IsActive          bool                 `json:"isActive"`
	CreatedAt         time.Time            `json:"createdAt"`
	UpdatedAt         time.Time            `json:"updatedAt"`
}

// CreateInput carries the fields accepted when registering a channel.
type CreateInput struct {
	TenantID          string               `json:"tenantId" validate:"required,uuid"`
	AgentID           string               `json:"agentId" validate:"required,uuid"`
	Platform          string               `json:"platform" validate:"required"`
	ExternalAccountID string               `json:"externalAccountId"`
	Credentials       platform.Credentials `json:"credentials"`
	Secret            string               `json:"secret"`
	VerifyToken       string               `json:"verifyToken"`
}
