package conversation

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/botdesk/botdesk/internal/channels"
	"github.com/botdesk/botdesk/internal/platform"
)

type fakeStore struct {
	active      map[string]Conversation
	createErr   error
	createCalls int
	findCalls   int
}

func key(channelID, externalID string) string {
	return channelID + "/" + externalID
}

func (s *fakeStore) FindActive(_ context.Context, channelID, externalID string) (Conversation, error) {
	s.findCalls++
	if conv, ok := s.active[key(channelID, externalID)]; ok {
		return conv, nil
	}
	return Conversation{}, ErrNotFound
}

func (s *fakeStore) Create(_ context.Context, input CreateInput) (Conversation, error) {
	s.createCalls++
	if s.createErr != nil {
		return Conversation{}, s.createErr
	}
	conv := Conversation{
		ID:           "conv-new",
		TenantID:     input.TenantID,
		ChannelID:    input.ChannelID,
		AgentID:      input.AgentID,
		ExternalID:   input.ExternalID,
		CustomerName: input.CustomerName,
		Status:       StatusActive,
	}
	if s.active == nil {
		s.active = make(map[string]Conversation)
	}
	s.active[key(input.ChannelID, input.ExternalID)] = conv
	return conv, nil
}

func activeChannel() channels.Channel {
	return channels.Channel{
		ID:       "ch-1",
		TenantID: "tenant-1",
		AgentID:  "agent-1",
		Platform: platform.WhatsApp,
		IsActive: true,
	}
}

func inbound(senderID string) platform.InboundMessage {
	return platform.InboundMessage{
		Platform:          platform.WhatsApp,
		SenderID:          senderID,
		SenderName:        "Ada Lovelace",
		ExternalMessageID: "wamid.1",
		Text:              "hello",
	}
}

func TestResolveReturnsExisting(t *testing.T) {
	existing := Conversation{ID: "conv-1", ChannelID: "ch-1", ExternalID: "16505551234", Status: StatusActive}
	store := &fakeStore{active: map[string]Conversation{key("ch-1", "16505551234"): existing}}
	resolver := NewResolver(nil, store)

	conv, err := resolver.Resolve(context.Background(), activeChannel(), inbound("16505551234"))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if conv.ID != "conv-1" {
		t.Fatalf("conversation = %q, want conv-1", conv.ID)
	}
	if store.createCalls != 0 {
		t.Fatal("create should not be called for an existing conversation")
	}
}

func TestResolveCreatesOnFirstContact(t *testing.T) {
	store := &fakeStore{}
	resolver := NewResolver(nil, store)

	conv, err := resolver.Resolve(context.Background(), activeChannel(), inbound("16505551234"))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if conv.ID != "conv-new" {
		t.Fatalf("conversation = %q", conv.ID)
	}
	if conv.CustomerName != "Ada Lovelace" {
		t.Fatalf("customer name = %q", conv.CustomerName)
	}
	if store.createCalls != 1 {
		t.Fatalf("create calls = %d, want 1", store.createCalls)
	}
}

// raceStore simulates losing a create race: the first read misses, the
// insert hits the unique constraint, and the re-read sees the winner's row.
type raceStore struct {
	winner    Conversation
	firstFind bool
}

func (s *raceStore) FindActive(_ context.Context, _, _ string) (Conversation, error) {
	if s.firstFind {
		s.firstFind = false
		return Conversation{}, ErrNotFound
	}
	return s.winner, nil
}

func (s *raceStore) Create(_ context.Context, _ CreateInput) (Conversation, error) {
	return Conversation{}, &pgconn.PgError{Code: "23505"}
}

func TestResolveLostRaceReReads(t *testing.T) {
	winner := Conversation{ID: "conv-winner", ChannelID: "ch-1", ExternalID: "16505551234", Status: StatusActive}
	resolver := NewResolver(nil, &raceStore{winner: winner, firstFind: true})

	conv, err := resolver.Resolve(context.Background(), activeChannel(), inbound("16505551234"))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if conv.ID != "conv-winner" {
		t.Fatalf("conversation = %q, want conv-winner", conv.ID)
	}
}

func TestResolveRejectsInactiveChannel(t *testing.T) {
	ch := activeChannel()
	ch.IsActive = false
	resolver := NewResolver(nil, &fakeStore{})

	_, err := resolver.Resolve(context.Background(), ch, inbound("16505551234"))
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("got %v, want ConfigurationError", err)
	}
}

func TestResolveRejectsUnboundChannel(t *testing.T) {
	ch := activeChannel()
	ch.AgentID = ""
	resolver := NewResolver(nil, &fakeStore{})

	_, err := resolver.Resolve(context.Background(), ch, inbound("16505551234"))
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("got %v, want ConfigurationError", err)
	}
}

func TestResolveRejectsMissingSender(t *testing.T) {
	resolver := NewResolver(nil, &fakeStore{})

	_, err := resolver.Resolve(context.Background(), activeChannel(), inbound("  "))
	var normErr *platform.NormalizationError
	if !errors.As(err, &normErr) {
		t.Fatalf("got %v, want NormalizationError", err)
	}
}
