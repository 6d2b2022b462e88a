package telegram

import (
	"errors"
	"strings"
	"testing"

	"github.com/botdesk/botdesk/internal/platform"
)

const updatePayload = `{
  "update_id": 873412,
  "message": {
    "message_id": 512,
    "from": {"id": 987654321, "is_bot": false, "first_name": "Grace", "last_name": "Hopper", "username": "gracewrites"},
    "chat": {"id": 987654321, "type": "private"},
    "date": 1700000000,
    "text": "What are your opening hours?"
  }
}`

func TestParsePayloadMessage(t *testing.T) {
	adapter := New(nil)
	messages, err := adapter.ParsePayload([]byte(updatePayload))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(messages) != 1 {
		t.Fatalf("got %d messages, want 1", len(messages))
	}
	msg := messages[0]
	if msg.Platform != platform.Telegram {
		t.Fatalf("platform = %q", msg.Platform)
	}
	if msg.SenderID != "987654321" {
		t.Fatalf("sender = %q", msg.SenderID)
	}
	if msg.SenderName != "Grace Hopper" {
		t.Fatalf("sender name = %q", msg.SenderName)
	}
	if msg.ExternalMessageID != "512" {
		t.Fatalf("external id = %q", msg.ExternalMessageID)
	}
	if msg.Text != "What are your opening hours?" {
		t.Fatalf("text = %q", msg.Text)
	}
	if msg.ReceivedAt.Unix() != 1700000000 {
		t.Fatalf("received at = %v", msg.ReceivedAt)
	}
}

func TestParsePayloadNonMessageUpdate(t *testing.T) {
	adapter := New(nil)
	messages, err := adapter.ParsePayload([]byte(`{"update_id": 873413, "edited_message": {"message_id": 513}}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(messages) != 0 {
		t.Fatalf("got %d messages, want 0", len(messages))
	}
}

func TestParsePayloadMalformed(t *testing.T) {
	adapter := New(nil)
	_, err := adapter.ParsePayload([]byte(`not json at all`))
	var normErr *platform.NormalizationError
	if !errors.As(err, &normErr) {
		t.Fatalf("got %v, want NormalizationError", err)
	}
}

func TestVerifySignatureAlwaysPasses(t *testing.T) {
	adapter := New(nil)
	if !adapter.VerifySignature([]byte("anything"), "", "") {
		t.Fatal("telegram signature check must pass")
	}
	if !adapter.VerifySignature(nil, "garbage", "secret") {
		t.Fatal("telegram signature check must pass regardless of input")
	}
}

func TestTruncateText(t *testing.T) {
	short := "hello"
	if got := truncateText(short); got != short {
		t.Fatalf("short text modified: %q", got)
	}
	long := strings.Repeat("ÿ", 5000)
	got := truncateText(long)
	if len(got) > maxMessageLength {
		t.Fatalf("truncated text too long: %d", len(got))
	}
	if !strings.HasSuffix(got, "...") {
		t.Fatal("missing truncation suffix")
	}
}
