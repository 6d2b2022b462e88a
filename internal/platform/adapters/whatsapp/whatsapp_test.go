package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/botdesk/botdesk/internal/platform"
)

const messagePayload = `{
  "object": "whatsapp_business_account",
  "entry": [{
    "id": "102290129340398",
    "changes": [{
      "field": "messages",
      "value": {
        "messaging_product": "whatsapp",
        "metadata": {"display_phone_number": "15550001111", "phone_number_id": "106540352242922"},
        "contacts": [{"profile": {"name": "Ada Lovelace"}, "wa_id": "16505551234"}],
        "messages": [{
          "from": "16505551234",
          "id": "wamid.HBgLMTY1MDUwNzY1MjAVAgARGBI5QTNDQTVCM0Q0Q0Q2RTY3RTcA",
          "timestamp": "1700000000",
          "type": "text",
          "text": {"body": "Hi, do you ship to Canada?"}
        }]
      }
    }]
  }]
}`

const statusOnlyPayload = `{
  "object": "whatsapp_business_account",
  "entry": [{
    "id": "102290129340398",
    "changes": [{
      "field": "messages",
      "value": {
        "messaging_product": "whatsapp",
        "metadata": {"phone_number_id": "106540352242922"},
        "statuses": [{"id": "wamid.X", "status": "delivered", "timestamp": "1700000001"}]
      }
    }]
  }]
}`

func TestParsePayloadTextMessage(t *testing.T) {
	adapter := New(nil)
	messages, err := adapter.ParsePayload([]byte(messagePayload))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(messages) != 1 {
		t.Fatalf("got %d messages, want 1", len(messages))
	}
	msg := messages[0]
	if msg.Platform != platform.WhatsApp {
		t.Fatalf("platform = %q", msg.Platform)
	}
	if msg.SenderID != "16505551234" {
		t.Fatalf("sender = %q", msg.SenderID)
	}
	if msg.SenderName != "Ada Lovelace" {
		t.Fatalf("sender name = %q", msg.SenderName)
	}
	if msg.ChannelRef != "106540352242922" {
		t.Fatalf("channel ref = %q", msg.ChannelRef)
	}
	if msg.Text != "Hi, do you ship to Canada?" {
		t.Fatalf("text = %q", msg.Text)
	}
	if msg.ExternalMessageID == "" {
		t.Fatal("external message id missing")
	}
	if msg.ReceivedAt.Unix() != 1700000000 {
		t.Fatalf("received at = %v", msg.ReceivedAt)
	}
}

func TestParsePayloadStatusOnly(t *testing.T) {
	adapter := New(nil)
	messages, err := adapter.ParsePayload([]byte(statusOnlyPayload))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(messages) != 0 {
		t.Fatalf("got %d messages, want 0", len(messages))
	}
}

func TestParsePayloadMalformed(t *testing.T) {
	adapter := New(nil)
	cases := []struct {
		name string
		body string
	}{
		{"invalid json", `{"object": `},
		{"wrong object", `{"object": "page", "entry": []}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := adapter.ParsePayload([]byte(tc.body))
			var normErr *platform.NormalizationError
			if !errors.As(err, &normErr) {
				t.Fatalf("got %v, want NormalizationError", err)
			}
			if normErr.Platform != platform.WhatsApp {
				t.Fatalf("platform = %q", normErr.Platform)
			}
		})
	}
}

func TestSendReply(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.OUT"}]}`))
	}))
	defer srv.Close()

	adapter := New(nil)
	adapter.SetBaseURL(srv.URL)
	creds := platform.Credentials{
		CredAccessToken:   "token-123",
		CredPhoneNumberID: "106540352242922",
	}
	if err := adapter.SendReply(context.Background(), creds, "16505551234", "Yes, we ship to Canada."); err != nil {
		t.Fatalf("send: %v", err)
	}
	if gotPath != "/106540352242922/messages" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotAuth != "Bearer token-123" {
		t.Fatalf("auth = %q", gotAuth)
	}
	if gotBody["to"] != "16505551234" || gotBody["messaging_product"] != "whatsapp" {
		t.Fatalf("body = %v", gotBody)
	}
}

func TestSendReplyErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad token"}}`))
	}))
	defer srv.Close()

	adapter := New(nil)
	adapter.SetBaseURL(srv.URL)
	creds := platform.Credentials{CredAccessToken: "bad", CredPhoneNumberID: "1"}
	if err := adapter.SendReply(context.Background(), creds, "16505551234", "hi"); err == nil {
		t.Fatal("expected send error")
	}
}

func TestSendReplyRequiresCredentials(t *testing.T) {
	adapter := New(nil)
	if err := adapter.SendReply(context.Background(), platform.Credentials{}, "1", "hi"); err == nil {
		t.Fatal("expected credentials error")
	}
}
