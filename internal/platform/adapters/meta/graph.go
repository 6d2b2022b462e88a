// Package meta holds the Graph API plumbing shared by the Messenger and
// Instagram adapters: both platforms deliver events in the same envelope and
// send replies through the same /me/messages endpoint.
package meta

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultGraphBaseURL is the Graph API root used unless overridden in tests.
const DefaultGraphBaseURL = "https://graph.facebook.com/v19.0"

// Envelope is the webhook delivery envelope shared by page and instagram
// subscriptions. A single delivery batches entries, each batching messaging
// events.
type Envelope struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

type Entry struct {
	ID        string           `json:"id"`
	Time      int64            `json:"time"`
	Messaging []MessagingEvent `json:"messaging"`
}

// MessagingEvent carries one platform-native event. Only events with a
// non-echo Message represent user input; delivery receipts, read receipts,
// and postbacks arrive in the same envelope with Message unset.
type MessagingEvent struct {
	Sender    Participant `json:"sender"`
	Recipient Participant `json:"recipient"`
	Timestamp int64       `json:"timestamp"`
	Message   *Message    `json:"message,omitempty"`
	Delivery  *struct{}   `json:"delivery,omitempty"`
	Read      *struct{}   `json:"read,omitempty"`
}

type Participant struct {
	ID string `json:"id"`
}

type Message struct {
	MID         string           `json:"mid"`
	Text        string           `json:"text"`
	IsEcho      bool             `json:"is_echo"`
	Attachments []AttachmentItem `json:"attachments"`
}

type AttachmentItem struct {
	Type    string `json:"type"`
	Payload struct {
		URL string `json:"url"`
	} `json:"payload"`
}

// EventTime converts the millisecond event timestamp, falling back to now.
func (e MessagingEvent) EventTime() time.Time {
	if e.Timestamp <= 0 {
		return time.Now().UTC()
	}
	return time.UnixMilli(e.Timestamp).UTC()
}

type sendRequest struct {
	MessagingType string      `json:"messaging_type"`
	Recipient     Participant `json:"recipient"`
	Message       sendMessage `json:"message"`
}

type sendMessage struct {
	Text string `json:"text"`
}

type sendError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// SendText delivers a text reply through POST /me/messages.
func SendText(ctx context.Context, client *http.Client, baseURL, accessToken, recipientID, text string) error {
	if strings.TrimSpace(accessToken) == "" {
		return fmt.Errorf("access token is required")
	}
	if strings.TrimSpace(recipientID) == "" {
		return fmt.Errorf("recipient id is required")
	}
	body, err := json.Marshal(sendRequest{
		MessagingType: "RESPONSE",
		Recipient:     Participant{ID: recipientID},
		Message:       sendMessage{Text: text},
	})
	if err != nil {
		return fmt.Errorf("marshal send request: %w", err)
	}
	endpoint := strings.TrimRight(baseURL, "/") + "/me/messages?access_token=" + url.QueryEscape(accessToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
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
	var apiErr sendError
	if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Message != "" {
		return fmt.Errorf("graph api status %d: %s (code %d)", resp.StatusCode, apiErr.Error.Message, apiErr.Error.Code)
	}
	return fmt.Errorf("graph api status %d", resp.StatusCode)
}
