package queue

import (
	"context"
	"log"

	"reviewq/pkg/bus"
)

// Publisher is the slice of the event bus the coordinator needs.
type Publisher interface {
	Publish(e bus.Event)
}

// Coordinator enforces the claim protocol on top of a Store and
// broadcasts every successful transition. The store's conditional
// updates provide the mutual exclusion; the coordinator adds input
// validation and event publication.
type Coordinator struct {
	store Store
	pub   Publisher
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(store Store, pub Publisher) *Coordinator {
	return &Coordinator{store: store, pub: pub}
}

// ClaimNext claims the oldest pending item for reviewer.
func (c *Coordinator) ClaimNext(ctx context.Context, reviewer string) (*Item, error) {
	it, err := c.store.ClaimNext(ctx, reviewer)
	if err != nil {
		return nil, err
	}
	log.Printf("queue: claim_next item=%s reviewer=%s", it.ID, reviewer)
	c.publish(bus.EventClaimed, it, reviewer)
	return it, nil
}

// Claim claims a specific item for reviewer.
func (c *Coordinator) Claim(ctx context.Context, id, reviewer string) (*Item, error) {
	it, err := c.store.Claim(ctx, id, reviewer)
	if err != nil {
		return nil, err
	}
	log.Printf("queue: claim item=%s reviewer=%s", it.ID, reviewer)
	c.publish(bus.EventClaimed, it, reviewer)
	return it, nil
}

// Release returns a claimed item to pending.
func (c *Coordinator) Release(ctx context.Context, id, reviewer string) (*Item, error) {
	it, err := c.store.Release(ctx, id, reviewer)
	if err != nil {
		return nil, err
	}
	log.Printf("queue: release item=%s reviewer=%s", it.ID, reviewer)
	c.publish(bus.EventReleased, it, reviewer)
	return it, nil
}

// Submit completes a claimed item. The decision is validated before the
// store is touched: an unknown value is rejected, never coerced.
func (c *Coordinator) Submit(ctx context.Context, id, reviewer string, decision Decision, feedback string, timeSpent int) (*Item, error) {
	if !decision.Valid() {
		return nil, ErrInvalidDecision
	}
	if timeSpent < 0 {
		timeSpent = 0
	}
	it, err := c.store.Submit(ctx, id, reviewer, decision, feedback, timeSpent)
	if err != nil {
		return nil, err
	}
	log.Printf("queue: submit item=%s reviewer=%s decision=%s time_spent=%ds", it.ID, reviewer, decision, timeSpent)
	c.publish(bus.EventCompleted, it, reviewer)
	return it, nil
}

// Create inserts a new pending item (used by the evaluation pipeline).
func (c *Coordinator) Create(ctx context.Context, it *Item) (*Item, error) {
	return c.store.Create(ctx, it)
}

// Get retrieves a single item.
func (c *Coordinator) Get(ctx context.Context, id string) (*Item, error) {
	return c.store.Get(ctx, id)
}

// List returns one page of items plus the total matching count.
func (c *Coordinator) List(ctx context.Context, f Filter) ([]Item, int, error) {
	return c.store.List(ctx, f)
}

// Stats returns counts by status.
func (c *Coordinator) Stats(ctx context.Context) (Stats, error) {
	return c.store.Stats(ctx)
}

func (c *Coordinator) publish(eventType string, it *Item, actor string) {
	if c.pub == nil {
		return
	}
	c.pub.Publish(bus.Event{
		Type:   eventType,
		ItemID: it.ID,
		Status: string(it.Status),
		Actor:  actor,
	})
}
