// Package platform provides a unified abstraction for external messaging
// platforms. It defines the canonical inbound message, adapter interfaces,
// and a registry for platform adapters such as WhatsApp and Telegram.
package platform

import (
	"fmt"
	"strings"
	"time"
)

// Platform identifies a messaging platform (e.g., "whatsapp", "telegram").
type Platform string

const (
	WhatsApp  Platform = "whatsapp"
	Messenger Platform = "messenger"
	Instagram Platform = "instagram"
	Telegram  Platform = "telegram"
)

// String returns the platform as a plain string.
func (p Platform) String() string {
	return string(p)
}

// Parse normalizes a platform tag from a route parameter or stored record.
func Parse(raw string) (Platform, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "whatsapp":
		return WhatsApp, nil
	case "messenger", "facebook":
		return Messenger, nil
	case "instagram":
		return Instagram, nil
	case "telegram":
		return Telegram, nil
	default:
		return "", fmt.Errorf("unknown platform: %q", raw)
	}
}

// AttachmentType classifies the kind of inbound attachment.
type AttachmentType string

const (
	AttachmentImage AttachmentType = "image"
	AttachmentAudio AttachmentType = "audio"
	AttachmentVideo AttachmentType = "video"
	AttachmentFile  AttachmentType = "file"
)

// Attachment references a binary file attached to an inbound message.
type Attachment struct {
	Type AttachmentType `json:"type"`
	URL  string         `json:"url,omitempty"`
	Name string         `json:"name,omitempty"`
	Mime string         `json:"mime,omitempty"`
	Size int64          `json:"size,omitempty"`
}

// InboundMessage is the canonical, platform-agnostic form of a user message.
// It is produced by an adapter's ParsePayload and consumed within a single
// pipeline invocation; it is never persisted as-is.
type InboundMessage struct {
	Platform          Platform     `json:"platform"`
	ExternalMessageID string       `json:"external_message_id"`
	SenderID          string       `json:"sender_id"`
	SenderName        string       `json:"sender_name,omitempty"`
	ChannelRef        string       `json:"channel_ref,omitempty"`
	Text              string       `json:"text"`
	Attachments       []Attachment `json:"attachments,omitempty"`
	ReceivedAt        time.Time    `json:"received_at"`
}

// IsEmpty reports whether the message carries no user content.
func (m InboundMessage) IsEmpty() bool {
	return strings.TrimSpace(m.Text) == "" && len(m.Attachments) == 0
}

// Credentials holds a channel's platform-side secrets (access tokens,
// account identifiers). Keys are adapter-specific.
type Credentials map[string]string

// Get returns the trimmed value for the given key, or empty string if absent.
func (c Credentials) Get(key string) string {
	if c == nil {
		return ""
	}
	return strings.TrimSpace(c[key])
}
