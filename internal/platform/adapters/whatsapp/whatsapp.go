// Package whatsapp implements the platform.Adapter for the WhatsApp
// Business Cloud API.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/botdesk/botdesk/internal/platform"
)

// Type is the WhatsApp platform tag.
const Type = platform.WhatsApp

// Credential keys expected in a channel's credentials map.
const (
	CredAccessToken   = "access_token"
	CredPhoneNumberID = "phone_number_id"
)

// Adapter implements platform.Adapter for WhatsApp Cloud API webhooks.
type Adapter struct {
	logger  *slog.Logger
	client  *http.Client
	baseURL string
}

// New creates a WhatsApp adapter with the given logger.
func New(log *slog.Logger) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	return &Adapter{
		logger:  log.With(slog.String("adapter", "whatsapp")),
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: "https://graph.facebook.com/v19.0",
	}
}

// SetBaseURL overrides the Graph API root (used by tests).
func (a *Adapter) SetBaseURL(baseURL string) {
	a.baseURL = strings.TrimRight(baseURL, "/")
}

// Type returns the WhatsApp platform tag.
func (a *Adapter) Type() platform.Platform {
	return Type
}

// VerifySignature validates Meta's X-Hub-Signature-256 header.
func (a *Adapter) VerifySignature(payload []byte, signature, secret string) bool {
	return platform.VerifyHMACSHA256(payload, signature, secret)
}

// --- webhook payload shapes (Cloud API event subscription) ---

type webhookPayload struct {
	Object string `json:"object"`
	Entry  []struct {
		ID      string `json:"id"`
		Changes []struct {
			Field string      `json:"field"`
			Value changeValue `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type changeValue struct {
	MessagingProduct string `json:"messaging_product"`
	Metadata         struct {
		DisplayPhoneNumber string `json:"display_phone_number"`
		PhoneNumberID      string `json:"phone_number_id"`
	} `json:"metadata"`
	Contacts []struct {
		Profile struct {
			Name string `json:"name"`
		} `json:"profile"`
		WaID string `json:"wa_id"`
	} `json:"contacts"`
	Messages []inboundItem     `json:"messages"`
	Statuses []json.RawMessage `json:"statuses"`
}

type inboundItem struct {
	From      string `json:"from"`
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      struct {
		Body string `json:"body"`
	} `json:"text"`
	Image    *mediaItem `json:"image"`
	Audio    *mediaItem `json:"audio"`
	Video    *mediaItem `json:"video"`
	Document *mediaItem `json:"document"`
}

type mediaItem struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	Caption  string `json:"caption"`
	Filename string `json:"filename"`
}

// ParsePayload extracts canonical messages from a Cloud API webhook body.
// Status-only deliveries (sent/delivered/read receipts) yield an empty slice.
func (a *Adapter) ParsePayload(body []byte) ([]platform.InboundMessage, error) {
	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &platform.NormalizationError{Platform: Type, Reason: "invalid json", Err: err}
	}
	if payload.Object != "whatsapp_business_account" {
		return nil, &platform.NormalizationError{Platform: Type, Reason: fmt.Sprintf("unexpected object %q", payload.Object)}
	}

	var messages []platform.InboundMessage
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			if change.Field != "" && change.Field != "messages" {
				continue
			}
			names := contactNames(change.Value)
			for _, item := range change.Value.Messages {
				msg := platform.InboundMessage{
					Platform:          Type,
					ExternalMessageID: strings.TrimSpace(item.ID),
					SenderID:          strings.TrimSpace(item.From),
					SenderName:        names[strings.TrimSpace(item.From)],
					ChannelRef:        strings.TrimSpace(change.Value.Metadata.PhoneNumberID),
					Text:              strings.TrimSpace(item.Text.Body),
					ReceivedAt:        parseUnixSeconds(item.Timestamp),
				}
				if att, caption, ok := extractAttachment(item); ok {
					msg.Attachments = append(msg.Attachments, att)
					if msg.Text == "" {
						msg.Text = caption
					}
				}
				if msg.SenderID == "" {
					continue
				}
				if msg.IsEmpty() {
					// Reactions, location pins, and other unsupported types.
					continue
				}
				messages = append(messages, msg)
			}
		}
	}
	return messages, nil
}

func contactNames(value changeValue) map[string]string {
	names := make(map[string]string, len(value.Contacts))
	for _, contact := range value.Contacts {
		waID := strings.TrimSpace(contact.WaID)
		name := strings.TrimSpace(contact.Profile.Name)
		if waID != "" && name != "" {
			names[waID] = name
		}
	}
	return names
}

func extractAttachment(item inboundItem) (platform.Attachment, string, bool) {
	switch {
	case item.Image != nil:
		return platform.Attachment{Type: platform.AttachmentImage, Mime: item.Image.MimeType}, strings.TrimSpace(item.Image.Caption), true
	case item.Audio != nil:
		return platform.Attachment{Type: platform.AttachmentAudio, Mime: item.Audio.MimeType}, "", true
	case item.Video != nil:
		return platform.Attachment{Type: platform.AttachmentVideo, Mime: item.Video.MimeType}, strings.TrimSpace(item.Video.Caption), true
	case item.Document != nil:
		return platform.Attachment{Type: platform.AttachmentFile, Mime: item.Document.MimeType, Name: item.Document.Filename}, strings.TrimSpace(item.Document.Caption), true
	}
	return platform.Attachment{}, "", false
}

func parseUnixSeconds(raw string) time.Time {
	seconds, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || seconds <= 0 {
		return time.Now().UTC()
	}
	return time.Unix(seconds, 0).UTC()
}

// --- outbound ---

type sendRequest struct {
	MessagingProduct string   `json:"messaging_product"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             sendText `json:"text"`
}

type sendText struct {
	Body string `json:"body"`
}

// SendReply delivers a text message through the Cloud API send endpoint.
func (a *Adapter) SendReply(ctx context.Context, creds platform.Credentials, recipientID, text string) error {
	accessToken := creds.Get(CredAccessToken)
	phoneNumberID := creds.Get(CredPhoneNumberID)
	if accessToken == "" || phoneNumberID == "" {
		return fmt.Errorf("whatsapp credentials require %s and %s", CredAccessToken, CredPhoneNumberID)
	}
	if strings.TrimSpace(recipientID) == "" {
		return fmt.Errorf("recipient id is required")
	}
	body, err := json.Marshal(sendRequest{
		MessagingProduct: "whatsapp",
		To:               recipientID,
		Type:             "text",
		Text:             sendText{Body: text},
	})
	if err != nil {
		return fmt.Errorf("marshal send request: %w", err)
	}
	endpoint := a.baseURL + "/" + phoneNumberID + "/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)
	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return fmt.Errorf("whatsapp send status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
}
