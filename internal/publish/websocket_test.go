package publish

import (
	"testing"
	"time"

	"github.com/croverlay/croverlay/internal/events"
)

func TestClientSubscriptionDefaultsToAll(t *testing.T) {
	sub := newClientSubscription()

	if !sub.wants(events.TypePlayCommitted) || !sub.wants(events.TypeSnapshotUpdated) {
		t.Error("New client should receive all event types")
	}
}

func TestClientSubscriptionNarrows(t *testing.T) {
	sub := newClientSubscription()
	sub.subscribe([]string{events.TypePlayCommitted, events.TypeMatchEnded})

	if !sub.wants(events.TypePlayCommitted) {
		t.Error("Subscribed type should be wanted")
	}
	if sub.wants(events.TypeSnapshotUpdated) {
		t.Error("Unsubscribed type should not be wanted after an explicit subscribe")
	}

	// Later subscribes accumulate.
	sub.subscribe([]string{events.TypeSnapshotUpdated})
	if !sub.wants(events.TypeSnapshotUpdated) {
		t.Error("Accumulated subscription should be wanted")
	}
}

func TestClientSubscriptionEmptySubscribeKeepsAll(t *testing.T) {
	sub := newClientSubscription()
	sub.subscribe(nil)

	if !sub.wants(events.TypePlayCommitted) {
		t.Error("Empty subscribe should not narrow the subscription")
	}
}

func TestOnEventQueuesMessage(t *testing.T) {
	s := NewServer(":0")

	err := s.OnEvent(events.Event{
		Type:      events.TypePlayCommitted,
		Timestamp: time.Now(),
		Payload:   events.PlayCommittedEvent{Card: "knight"},
	})
	if err != nil {
		t.Fatalf("OnEvent failed: %v", err)
	}

	select {
	case msg := <-s.broadcast:
		if msg.Type != events.TypePlayCommitted {
			t.Errorf("Unexpected message type %q", msg.Type)
		}
	default:
		t.Fatal("Expected a queued broadcast message")
	}
}

func TestOnEventDropsWhenFull(t *testing.T) {
	s := NewServer(":0")

	for i := 0; i < cap(s.broadcast); i++ {
		if err := s.OnEvent(events.Event{Type: events.TypeSnapshotUpdated}); err != nil {
			t.Fatalf("OnEvent failed: %v", err)
		}
	}
	// The channel is full; the next event is dropped, not blocked on.
	if err := s.OnEvent(events.Event{Type: events.TypeSnapshotUpdated}); err != nil {
		t.Errorf("OnEvent should drop silently when full, got %v", err)
	}
}

func TestServerObserverContract(t *testing.T) {
	s := NewServer(":0")

	if s.GetName() != "WebSocketPublisher" {
		t.Errorf("Unexpected observer name %q", s.GetName())
	}
	if !s.ShouldHandle(events.TypeSnapshotUpdated) || !s.ShouldHandle(events.TypeEventDropped) {
		t.Error("Publisher should accept every event type")
	}
	if s.ClientCount() != 0 {
		t.Errorf("Expected no clients, got %d", s.ClientCount())
	}
}

func TestExtractEventTypes(t *testing.T) {
	got := extractEventTypes([]interface{}{"tracker:play", 42, "match:ended"})
	if len(got) != 2 || got[0] != "tracker:play" || got[1] != "match:ended" {
		t.Errorf("Unexpected extraction: %v", got)
	}

	if got := extractEventTypes("not-a-list"); got != nil {
		t.Errorf("Expected nil for non-list input, got %v", got)
	}
}
