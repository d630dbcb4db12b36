package live

import (
	"encoding/json"
	"testing"
)

func TestPublishWithoutSubscribersIsSafe(t *testing.T) {
	hub := NewHub("*", true)
	hub.Publish("itin-1", map[string]string{"type": "edit_applied"})
	if n := hub.SubscriberCount("itin-1"); n != 0 {
		t.Errorf("SubscriberCount = %d, want 0", n)
	}
}

func TestPublishDeliversToSubscribers(t *testing.T) {
	hub := NewHub("*", true)
	sub := &subscriber{events: make(chan []byte, subscriberBuffer)}
	hub.register("itin-1", sub)
	defer hub.unregister("itin-1", sub)

	other := &subscriber{events: make(chan []byte, subscriberBuffer)}
	hub.register("itin-2", other)
	defer hub.unregister("itin-2", other)

	hub.Publish("itin-1", map[string]string{"type": "edit_applied", "change_id": "change_1"})

	select {
	case data := <-sub.events:
		var event map[string]string
		if err := json.Unmarshal(data, &event); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		if event["type"] != "edit_applied" || event["change_id"] != "change_1" {
			t.Errorf("event = %v", event)
		}
	default:
		t.Fatal("subscriber received no event")
	}

	select {
	case <-other.events:
		t.Error("event leaked to a different itinerary's subscriber")
	default:
	}
}

func TestPublishDropsWhenSubscriberIsFull(t *testing.T) {
	hub := NewHub("*", true)
	sub := &subscriber{events: make(chan []byte, 1)}
	hub.register("itin-1", sub)
	defer hub.unregister("itin-1", sub)

	// Second publish must not block even though the buffer is full.
	hub.Publish("itin-1", map[string]string{"seq": "1"})
	hub.Publish("itin-1", map[string]string{"seq": "2"})

	if n := len(sub.events); n != 1 {
		t.Errorf("buffered events = %d, want 1", n)
	}
}

func TestUnregisterRemovesEmptySets(t *testing.T) {
	hub := NewHub("*", true)
	sub := &subscriber{events: make(chan []byte, 1)}
	hub.register("itin-1", sub)
	hub.unregister("itin-1", sub)

	if n := hub.SubscriberCount("itin-1"); n != 0 {
		t.Errorf("SubscriberCount = %d, want 0", n)
	}
	hub.mu.RLock()
	_, ok := hub.subs["itin-1"]
	hub.mu.RUnlock()
	if ok {
		t.Error("empty subscriber set was not removed")
	}
}
