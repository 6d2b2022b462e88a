package messenger

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

const pagePayload = `{
  "object": "page",
  "entry": [{
    "id": "112233445566",
    "time": 1700000000123,
    "messaging": [{
      "sender": {"id": "24400001"},
      "recipient": {"id": "112233445566"},
      "timestamp": 1700000000123,
      "message": {"mid": "m_abc123", "text": "Is the blue jacket in stock?"}
    }]
  }]
}`

const receiptPayload = `{
  "object": "page",
  "entry": [{
    "id": "112233445566",
    "messaging": [{
      "sender": {"id": "24400001"},
      "recipient": {"id": "112233445566"},
      "timestamp": 1700000000123,
      "delivery": {}
    }]
  }]
}`

const echoPayload = `{
  "object": "page",
  "entry": [{
    "id": "112233445566",
    "messaging": [{
      "sender": {"id": "112233445566"},
      "recipient": {"id": "24400001"},
      "timestamp": 1700000000123,
      "message": {"mid": "m_echo", "text": "our own reply", "is_echo": true}
    }]
  }]
}`

func TestParsePayloadMessage(t *testing.T) {
	adapter := New(nil)
	messages, err := adapter.ParsePayload([]byte(pagePayload))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(messages) != 1 {
		t.Fatalf("got %d messages, want 1", len(messages))
	}
	msg := messages[0]
	if msg.Platform != platform.Messenger {
		t.Fatalf("platform = %q", msg.Platform)
	}
	if msg.SenderID != "24400001" {
		t.Fatalf("sender = %q", msg.SenderID)
	}
	if msg.ChannelRef != "112233445566" {
		t.Fatalf("channel ref = %q", msg.ChannelRef)
	}
	if msg.ExternalMessageID != "m_abc123" {
		t.Fatalf("external id = %q", msg.ExternalMessageID)
	}
	if msg.Text != "Is the blue jacket in stock?" {
		t.Fatalf("text = %q", msg.Text)
	}
}

func TestParsePayloadReceiptsAndEchoes(t *testing.T) {
	adapter := New(nil)
	for _, body := range []string{receiptPayload, echoPayload} {
		messages, err := adapter.ParsePayload([]byte(body))
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		if len(messages) != 0 {
			t.Fatalf("got %d messages, want 0", len(messages))
		}
	}
}

func TestParsePayloadWrongObject(t *testing.T) {
	adapter := New(nil)
	_, err := adapter.ParsePayload([]byte(`{"object":"whatsapp_business_account","entry":[]}`))
	var normErr *platform.NormalizationError
	if !errors.As(err, &normErr) {
		t.Fatalf("got %v, want NormalizationError", err)
	}
}

func TestSendReply(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"message_id":"m_out"}`))
	}))
	defer srv.Close()

	adapter := New(nil)
	adapter.SetBaseURL(srv.URL)
	creds := platform.Credentials{CredAccessToken: "page-token"}
	if err := adapter.SendReply(context.Background(), creds, "24400001", "Yes, in stock."); err != nil {
		t.Fatalf("send: %v", err)
	}
	if gotPath != "/me/messages" {
		t.Fatalf("path = %q", gotPath)
	}
	recipient, _ := gotBody["recipient"].(map[string]any)
	if recipient["id"] != "24400001" {
		t.Fatalf("recipient = %v", gotBody["recipient"])
	}
	if gotBody["messaging_type"] != "RESPONSE" {
		t.Fatalf("messaging_type = %v", gotBody["messaging_type"])
	}
}
