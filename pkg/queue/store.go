package queue

import (
	"context"
	"errors"
	"time"
)

// Business outcomes of queue operations. These are values, not faults:
// callers branch on them with errors.Is. Only transport and storage
// failures arrive wrapped in anything else.
var (
	// ErrEmptyQueue means no pending item was available to claim.
	ErrEmptyQueue = errors.New("no pending items to claim")
	// ErrNotFound means the item id is unknown (stale client view).
	ErrNotFound = errors.New("item not found")
	// ErrAlreadyClaimed means another reviewer holds the item.
	ErrAlreadyClaimed = errors.New("item claimed by another reviewer")
	// ErrNotOwner means the caller does not hold the item's claim.
	ErrNotOwner = errors.New("caller does not hold the claim")
	// ErrNotClaimed means the item is not in the claimed state.
	ErrNotClaimed = errors.New("item is not claimed")
	// ErrInvalidDecision means the submitted decision value is unknown.
	ErrInvalidDecision = errors.New("invalid decision")
)

// Store is the contract for validation item persistence. Claim, Release
// and Submit are conditional transitions: they succeed only from the
// required current state, so concurrent callers can never corrupt an
// item. Implementations must make ClaimNext safe under concurrent
// callers racing for the same pending item.
type Store interface {
	Create(ctx context.Context, it *Item) (*Item, error)
	Get(ctx context.Context, id string) (*Item, error)

	// ClaimNext claims the oldest pending item for reviewer.
	// Returns ErrEmptyQueue when nothing is pending.
	ClaimNext(ctx context.Context, reviewer string) (*Item, error)

	// Claim claims a specific pending item. Re-claiming an item you
	// already hold is a no-op that returns the item.
	Claim(ctx context.Context, id, reviewer string) (*Item, error)

	// Release returns a claimed item to pending. Only the holder may
	// release.
	Release(ctx context.Context, id, reviewer string) (*Item, error)

	// Submit completes a claimed item with the reviewer's decision.
	// Only the holder may submit; completed items are immutable, except
	// that repeating the identical submit returns the completed item.
	Submit(ctx context.Context, id, reviewer string, decision Decision, feedback string, timeSpent int) (*Item, error)

	// List returns one page of items plus the total count matching the
	// filter, oldest first.
	List(ctx context.Context, f Filter) ([]Item, int, error)

	// CompletedSince returns items completed at or after the given time,
	// for downstream pattern analysis.
	CompletedSince(ctx context.Context, since time.Time) ([]Item, error)

	Stats(ctx context.Context) (Stats, error)
	EnsureTable(ctx context.Context) error
}
