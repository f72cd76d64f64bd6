package sse

import (
	"encoding/json"
	"testing"
)

func TestHubPublish(t *testing.T) {
	hub := NewHub(nil)
	client := &Client{ID: "c1", Events: make(chan Event, 1)}
	hub.Register(client)

	hub.Publish(EventWBSUpdate, Change{ProjectID: 3, ID: 7, Action: ActionDeleted})

	select {
	case ev := <-client.Events:
		if ev.EventType != EventWBSUpdate {
			t.Fatalf("Expected %s, got %s", EventWBSUpdate, ev.EventType)
		}
		var change Change
		if err := json.Unmarshal([]byte(ev.Data), &change); err != nil {
			t.Fatalf("Invalid payload %q: %v", ev.Data, err)
		}
		if change.ProjectID != 3 || change.ID != 7 || change.Action != ActionDeleted {
			t.Errorf("Unexpected payload: %+v", change)
		}
	default:
		t.Fatal("Expected an event to be delivered")
	}
}

func TestHubFullBufferDoesNotBlock(t *testing.T) {
	hub := NewHub(nil)
	client := &Client{ID: "slow", Events: make(chan Event, 1)}
	hub.Register(client)

	hub.Broadcast(Event{EventType: "a"})
	hub.Broadcast(Event{EventType: "b"})

	if got := (<-client.Events).EventType; got != "a" {
		t.Errorf("Expected first event kept, got %s", got)
	}
}

func TestHubUnregisterClosesChannel(t *testing.T) {
	hub := NewHub(nil)
	client := &Client{ID: "c1", Events: make(chan Event, 1)}
	hub.Register(client)
	hub.Unregister("c1")
	hub.Unregister("c1")

	if _, ok := <-client.Events; ok {
		t.Error("Expected channel to be closed")
	}
	if hub.Clients() != 0 {
		t.Errorf("Expected 0 clients, got %d", hub.Clients())
	}
}

func TestNilHubPublish(t *testing.T) {
	var hub *Hub
	hub.Publish(EventTaskUpdate, Change{Action: ActionCreated})
}
