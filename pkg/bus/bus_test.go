package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishFansOutToAllSubscribers(t *testing.T) {
	b := New()
	a := b.Subscribe()
	c := b.Subscribe()
	defer b.Unsubscribe(c)

	b.Publish(Event{Type: EventClaimed, ItemID: "item-1", Actor: "alice"})

	got := <-a
	assert.Equal(t, "item-1", got.ItemID)
	got = <-c
	assert.Equal(t, "item-1", got.ItemID)

	b.Unsubscribe(a)
	_, open := <-a
	assert.False(t, open, "unsubscribed channel should be closed")
}

func TestSameItemEventsArriveInOrder(t *testing.T) {
	b := New()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: EventClaimed, ItemID: "item-1"})
	b.Publish(Event{Type: EventReleased, ItemID: "item-1"})
	b.Publish(Event{Type: EventClaimed, ItemID: "item-1"})
	b.Publish(Event{Type: EventCompleted, ItemID: "item-1"})

	want := []string{EventClaimed, EventReleased, EventClaimed, EventCompleted}
	for _, typ := range want {
		e := <-ch
		require.Equal(t, typ, e.Type)
	}
}

// A subscriber that stops draining must not block publishers; its
// overflow is dropped and everyone else still receives.
func TestSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	b := New()
	slow := b.Subscribe()
	defer b.Unsubscribe(slow)
	live := b.Subscribe()
	defer b.Unsubscribe(live)

	// overflow the slow subscriber's buffer
	for i := 0; i < 200; i++ {
		b.Publish(Event{Type: EventClaimed, ItemID: "item-1"})
	}

	drained := 0
	for len(live) > 0 {
		<-live
		drained++
	}
	assert.Equal(t, 64, drained, "live subscriber keeps a full buffer")
	assert.Equal(t, 64, len(slow))
}

func TestSubscriberCount(t *testing.T) {
	b := New()
	assert.Equal(t, 0, b.SubscriberCount())

	a := b.Subscribe()
	c := b.Subscribe()
	assert.Equal(t, 2, b.SubscriberCount())

	b.Unsubscribe(a)
	b.Unsubscribe(c)
	assert.Equal(t, 0, b.SubscriberCount())
}
