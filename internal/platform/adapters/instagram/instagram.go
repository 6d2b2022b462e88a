// Package instagram implements the platform.Adapter for Instagram messaging
// subscriptions. Instagram shares Messenger's envelope and send API.
package instagram

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/botdesk/botdesk/internal/platform"
	"github.com/botdesk/botdesk/internal/platform/adapters/messenger"
	"github.com/botdesk/botdesk/internal/platform/adapters/meta"
)

// Type is the Instagram platform tag.
const Type = platform.Instagram

// CredAccessToken is the access token credential key.
const CredAccessToken = "access_token"

// Adapter implements platform.Adapter for Instagram webhooks.
type Adapter struct {
	logger  *slog.Logger
	client  *http.Client
	baseURL string
}

// New creates an Instagram adapter with the given logger.
func New(log *slog.Logger) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	return &Adapter{
		logger:  log.With(slog.String("adapter", "instagram")),
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: meta.DefaultGraphBaseURL,
	}
}

// SetBaseURL overrides the Graph API root (used by tests).
func (a *Adapter) SetBaseURL(baseURL string) {
	a.baseURL = strings.TrimRight(baseURL, "/")
}

// Type returns the Instagram platform tag.
func (a *Adapter) Type() platform.Platform {
	return Type
}

// VerifySignature validates Meta's X-Hub-Signature-256 header.
func (a *Adapter) VerifySignature(payload []byte, signature, secret string) bool {
	return platform.VerifyHMACSHA256(payload, signature, secret)
}

// ParsePayload extracts canonical messages from an instagram webhook envelope.
func (a *Adapter) ParsePayload(body []byte) ([]platform.InboundMessage, error) {
	var envelope meta.Envelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, &platform.NormalizationError{Platform: Type, Reason: "invalid json", Err: err}
	}
	if envelope.Object != "instagram" {
		return nil, &platform.NormalizationError{Platform: Type, Reason: fmt.Sprintf("unexpected object %q", envelope.Object)}
	}
	return messenger.FromEnvelope(Type, envelope), nil
}

// SendReply delivers a text reply through the Graph send API.
func (a *Adapter) SendReply(ctx context.Context, creds platform.Credentials, recipientID, text string) error {
	return meta.SendText(ctx, a.client, a.baseURL, creds.Get(CredAccessToken), recipientID, text)
}
