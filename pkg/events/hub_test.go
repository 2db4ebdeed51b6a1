package events

import "testing"

func TestHubPublishAndDecode(t *testing.T) {
	hub := NewEventHub()
	ch := hub.Subscribe()
	defer hub.Unsubscribe(ch)

	hub.Publish(RefreshProgress, RefreshProgressEvent{Progress: 42, Phase: "blue", Ts: 1})

	ev := <-ch
	if ev.Name != RefreshProgress {
		t.Fatalf("event name = %q, want %q", ev.Name, RefreshProgress)
	}
	payload, err := DecodeAs[RefreshProgressEvent](ev)
	if err != nil {
		t.Fatalf("DecodeAs failed: %v", err)
	}
	if payload.Progress != 42 || payload.Phase != "blue" {
		t.Fatalf("decoded payload = %+v", payload)
	}
}

func TestHubSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	hub := NewEventHub()
	ch := hub.Subscribe()
	defer hub.Unsubscribe(ch)

	// Overfill the buffer; Publish must never block on a slow reader.
	for i := 0; i < subscriberBuffer+10; i++ {
		hub.Publish(RefreshProgress, RefreshProgressEvent{Progress: i})
	}

	if got := len(ch); got != subscriberBuffer {
		t.Fatalf("buffered events = %d, want %d", got, subscriberBuffer)
	}
}

func TestHubShutdownReleasesSubscribers(t *testing.T) {
	hub := NewEventHub()
	ch := hub.Subscribe()

	hub.Shutdown()

	if _, ok := <-ch; ok {
		t.Fatalf("subscriber channel should be closed after shutdown")
	}

	// Unsubscribe after Shutdown must not double-close.
	hub.Unsubscribe(ch)
}
