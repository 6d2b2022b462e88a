package events

import (
	"testing"
	"time"
)

func TestSubscribeAndPublish(t *testing.T) {
	hub := NewHub(nil)
	ch, cancel := hub.Subscribe("tenant-1")
	defer cancel()

	hub.Publish(Event{Type: TypeMessageCreated, TenantID: "tenant-1", ConversationID: "conv-1"})

	select {
	case event := <-ch:
		if event.Type != TypeMessageCreated || event.ConversationID != "conv-1" {
			t.Fatalf("unexpected event: %+v", event)
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestTenantIsolation(t *testing.T) {
	hub := NewHub(nil)
	ch, cancel := hub.Subscribe("tenant-1")
	defer cancel()

	hub.Publish(Event{Type: TypeConversationOpened, TenantID: "tenant-2"})

	select {
	case event := <-ch:
		t.Fatalf("received another tenant's event: %+v", event)
	default:
	}
}

func TestPublishDropsWhenBufferFull(t *testing.T) {
	hub := NewHub(nil)
	ch, cancel := hub.Subscribe("tenant-1")
	defer cancel()

	// Overfill the buffer without draining; extra events must be dropped
	// rather than blocking the publisher.
	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer+10; i++ {
			hub.Publish(Event{Type: TypeMessageCreated, TenantID: "tenant-1"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
	if len(ch) != subscriberBuffer {
		t.Fatalf("buffered %d events, want %d", len(ch), subscriberBuffer)
	}
}

func TestCancelRemovesSubscriber(t *testing.T) {
	hub := NewHub(nil)
	ch, cancel := hub.Subscribe("tenant-1")
	cancel()

	hub.Publish(Event{Type: TypeMessageCreated, TenantID: "tenant-1"})
	select {
	case event := <-ch:
		t.Fatalf("cancelled subscriber received event: %+v", event)
	default:
	}
}
