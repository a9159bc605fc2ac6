// Package bus provides in-process fan-out of queue events to connected
// reviewer sessions. Delivery is at-least-once for live subscribers and
// has no durability: a session that falls behind or reconnects must
// re-fetch queue state rather than expect a replay.
package bus

import "sync"

// Event types published on the bus.
const (
	EventClaimed           = "validation_claimed"
	EventReleased          = "validation_released"
	EventCompleted         = "validation_completed"
	EventAnalysisCompleted = "analysis_completed"
)

// Event is one queue or analysis notification.
type Event struct {
	Type   string `json:"type"`
	ItemID string `json:"item_id,omitempty"`
	Status string `json:"status,omitempty"`
	Actor  string `json:"actor,omitempty"`
	TaskID string `json:"task_id,omitempty"`
}

// Bus fans events out to all subscribers. Publishes for a single item
// are issued sequentially by the coordinator, so each subscriber channel
// observes that item's events in order.
type Bus struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
}

// New creates a Bus.
func New() *Bus {
	return &Bus{subs: make(map[chan Event]struct{})}
}

// Publish delivers e to all current subscribers without blocking.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
			// subscriber is behind; drop to avoid blocking Publish
		}
	}
	b.mu.RUnlock()
}

// Subscribe returns a buffered channel that receives all new events.
func (b *Bus) Subscribe() chan Event {
	ch := make(chan Event, 64)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Bus) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	delete(b.subs, ch)
	b.mu.Unlock()
	close(ch)
}

// SubscriberCount returns the number of connected subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
