// Package messenger implements the platform.Adapter for Facebook Messenger
// page subscriptions.
package messenger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/botdesk/botdesk/internal/platform"
	"github.com/botdesk/botdesk/internal/platform/adapters/meta"
)

// Type is the Messenger platform tag.
const Type = platform.Messenger

// CredAccessToken is the page access token credential key.
const CredAccessToken = "access_token"

// Adapter implements platform.Adapter for Messenger webhooks.
type Adapter struct {
	logger  *slog.Logger
	client  *http.Client
	baseURL string
}

// New creates a Messenger adapter with the given logger.
func New(log *slog.Logger) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	return &Adapter{
		logger:  log.With(slog.String("adapter", "messenger")),
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: meta.DefaultGraphBaseURL,
	}
}

// SetBaseURL overrides the Graph API root (used by tests).
func (a *Adapter) SetBaseURL(baseURL string) {
	a.baseURL = strings.TrimRight(baseURL, "/")
}

// Type returns the Messenger platform tag.
func (a *Adapter) Type() platform.Platform {
	return Type
}

// VerifySignature validates Meta's X-Hub-Signature-256 header.
func (a *Adapter) VerifySignature(payload []byte, signature, secret string) bool {
	return platform.VerifyHMACSHA256(payload, signature, secret)
}

// ParsePayload extracts canonical messages from a page webhook envelope.
// Delivery receipts, read receipts, and bot echoes yield no messages.
func (a *Adapter) ParsePayload(body []byte) ([]platform.InboundMessage, error) {
	var envelope meta.Envelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, &platform.NormalizationError{Platform: Type, Reason: "invalid json", Err: err}
	}
	if envelope.Object != "page" {
		return nil, &platform.NormalizationError{Platform: Type, Reason: fmt.Sprintf("unexpected object %q", envelope.Object)}
	}
	return FromEnvelope(Type, envelope), nil
}

// FromEnvelope maps messaging events to canonical messages. Shared with the
// Instagram adapter, whose envelope differs only in the object tag.
func FromEnvelope(p platform.Platform, envelope meta.Envelope) []platform.InboundMessage {
	var messages []platform.InboundMessage
	for _, entry := range envelope.Entry {
		for _, event := range entry.Messaging {
			if event.Message == nil || event.Message.IsEcho {
				continue
			}
			channelRef := strings.TrimSpace(event.Recipient.ID)
			if channelRef == "" {
				channelRef = strings.TrimSpace(entry.ID)
			}
			msg := platform.InboundMessage{
				Platform:          p,
				ExternalMessageID: strings.TrimSpace(event.Message.MID),
				SenderID:          strings.TrimSpace(event.Sender.ID),
				ChannelRef:        channelRef,
				Text:              strings.TrimSpace(event.Message.Text),
				Attachments:       mapAttachments(event.Message.Attachments),
				ReceivedAt:        event.EventTime(),
			}
			if msg.SenderID == "" || msg.IsEmpty() {
				continue
			}
			messages = append(messages, msg)
		}
	}
	return messages
}

func mapAttachments(items []meta.AttachmentItem) []platform.Attachment {
	if len(items) == 0 {
		return nil
	}
	attachments := make([]platform.Attachment, 0, len(items))
	for _, item := range items {
		attType := platform.AttachmentFile
		switch strings.ToLower(strings.TrimSpace(item.Type)) {
		case "image":
			attType = platform.AttachmentImage
		case "audio":
			attType = platform.AttachmentAudio
		case "video":
			attType = platform.AttachmentVideo
		}
		attachments = append(attachments, platform.Attachment{
			Type: attType,
			URL:  strings.TrimSpace(item.Payload.URL),
		})
	}
	return attachments
}

// SendReply delivers a text reply through the page send API.
func (a *Adapter) SendReply(ctx context.Context, creds platform.Credentials, recipientID, text string) error {
	return meta.SendText(ctx, a.client, a.baseURL, creds.Get(CredAccessToken), recipientID, text)
}
