package events

import (
	"encoding/json"
	"sync"
)

// subscriberBuffer sizes each subscriber channel. Sweep phases tick at
// ~30 Hz; the buffer absorbs a burst of progress events while an SSE
// writer is flushing so bursts are not dropped outright.
const subscriberBuffer = 64

type EventHub struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
}

func NewEventHub() *EventHub { return &EventHub{subs: make(map[chan Event]struct{})} }

func (h *EventHub) Subscribe() chan Event {
	ch := make(chan Event, subscriberBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *EventHub) Unsubscribe(ch chan Event) {
	h.mu.Lock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
	h.mu.Unlock()
}

// Shutdown closes every subscriber channel so blocked readers return.
// A subscriber that later calls Unsubscribe is a no-op.
func (h *EventHub) Shutdown() {
	h.mu.Lock()
	for ch := range h.subs {
		delete(h.subs, ch)
		close(ch)
	}
	h.mu.Unlock()
}

func (h *EventHub) Publish(name string, payload any) {
	if h == nil {
		return
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return
	}
	msg := Event{Name: name, Data: b}
	h.mu.RLock()
	for ch := range h.subs {
		// Non-blocking send; a subscriber whose buffer filled up loses
		// events rather than stalling the engine.
		select {
		case ch <- msg:
		default:
		}
	}
	h.mu.RUnlock()
}
