package platform

import (
	"context"
	"testing"
)

type stubAdapter struct {
	platform Platform
}

func (a *stubAdapter) Type() Platform { return a.platform }
func (a *stubAdapter) ParsePayload([]byte) ([]InboundMessage, error) {
	return nil, nil
}
func (a *stubAdapter) VerifySignature([]byte, string, string) bool { return true }
func (a *stubAdapter) SendReply(context.Context, Credentials, string, string) error {
	return nil
}

func TestRegistryRegisterAndGet(t *testing.T) {
	registry := NewRegistry()
	adapter := &stubAdapter{platform: WhatsApp}
	if err := registry.Register(adapter); err != nil {
		t.Fatalf("register: %v", err)
	}
	got, ok := registry.Get(WhatsApp)
	if !ok {
		t.Fatal("adapter not found")
	}
	if got != adapter {
		t.Fatal("wrong adapter returned")
	}
	if _, ok := registry.Get(Telegram); ok {
		t.Fatal("unexpected adapter for unregistered platform")
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	registry := NewRegistry()
	registry.MustRegister(&stubAdapter{platform: Telegram})
	if err := registry.Register(&stubAdapter{platform: Telegram}); err == nil {
		t.Fatal("expected duplicate registration error")
	}
}

func TestParse(t *testing.T) {
	cases := map[string]Platform{
		"whatsapp":  WhatsApp,
		"WhatsApp":  WhatsApp,
		"messenger": Messenger,
		"facebook":  Messenger,
		"instagram": Instagram,
		"telegram":  Telegram,
	}
	for raw, want := range cases {
		got, err := Parse(raw)
		if err != nil {
			t.Fatalf("parse %q: %v", raw, err)
		}
		if got != want {
			t.Fatalf("parse %q = %q, want %q", raw, got, want)
		}
	}
	if _, err := Parse("carrier-pigeon"); err == nil {
		t.Fatal("expected error for unknown platform")
	}
}
