package agents

import "time"

// Agent is a configured chatbot: its persona drives system prompt
// composition and its provider/model settings drive generation.
type Agent struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenantId"`
	Name        string    `json:"name"`
	Persona     string    `json:"persona"`
	Traits      []string  `json:"traits"`
	Tone        string    `json:"tone"`
	Provider    string    `json:"provider"`
	Model       string    `json:"model"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   *int      `json:"maxTokens,omitempty"`
	DocumentIDs []string  `json:"documentIds"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// CreateInput carries the fields accepted when creating an agent.
type CreateInput struct {
	TenantID    string   `json:"tenantId" validate:"required,uuid"`
	Name        string   `json:"name" validate:"required"`
	Persona     string   `json:"persona"`
	Traits      []string `json:"traits"`
	Tone        string   `json:"tone"`
	Provider    string   `json:"provider"`
	Model       string   `json:"model"`
	Temperature *float64 `json:"temperature"`
	MaxTokens   *int     `json:"maxTokens"`
	DocumentIDs []string `json:"documentIds"`
}
