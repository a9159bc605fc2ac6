package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedItems(t *testing.T, s *MemStore, n int) []string {
	t.Helper()
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		it, err := s.Create(context.Background(), &Item{
			ScenarioID:   fmt.Sprintf("scenario-%d", i),
			ExecutionID:  "exec-1",
			LanguageCode: "en-US",
			StepOrder:    i,
		})
		require.NoError(t, err)
		ids = append(ids, it.ID)
	}
	return ids
}

func TestClaimNextOldestFirst(t *testing.T) {
	s := NewMemStore()
	ids := seedItems(t, s, 3)

	it, err := s.ClaimNext(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, ids[0], it.ID)
	assert.Equal(t, StatusClaimed, it.Status)
	assert.Equal(t, "alice", it.ClaimedBy)

	it2, err := s.ClaimNext(context.Background(), "bob")
	require.NoError(t, err)
	assert.Equal(t, ids[1], it2.ID)
}

func TestClaimNextEmptyQueue(t *testing.T) {
	s := NewMemStore()
	_, err := s.ClaimNext(context.Background(), "alice")
	assert.ErrorIs(t, err, ErrEmptyQueue)
}

// N concurrent claimers racing for M < N items must end with exactly M
// successful claims, all for distinct items, and N-M empty-queue
// results.
func TestClaimNextConcurrent(t *testing.T) {
	const claimers = 16
	const items = 5

	s := NewMemStore()
	seedItems(t, s, items)

	var wg sync.WaitGroup
	won := make(chan string, claimers)
	empty := make(chan struct{}, claimers)

	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			it, err := s.ClaimNext(context.Background(), fmt.Sprintf("reviewer-%d", n))
			switch {
			case err == nil:
				won <- it.ID
			case errors.Is(err, ErrEmptyQueue):
				empty <- struct{}{}
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()
	close(won)
	close(empty)

	seen := make(map[string]bool)
	for id := range won {
		assert.False(t, seen[id], "item %s claimed twice", id)
		seen[id] = true
	}
	assert.Len(t, seen, items)
	assert.Equal(t, claimers-items, len(empty))
}

// One pending item, two concurrent claimers: exactly one wins, the
// other sees an empty queue.
func TestClaimNextTwoReviewersOneItem(t *testing.T) {
	s := NewMemStore()
	seedItems(t, s, 1)

	results := make(chan error, 2)
	var wg sync.WaitGroup
	for _, rev := range []string{"alice", "bob"} {
		wg.Add(1)
		go func(r string) {
			defer wg.Done()
			_, err := s.ClaimNext(context.Background(), r)
			results <- err
		}(rev)
	}
	wg.Wait()
	close(results)

	var wins, empties int
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrEmptyQueue):
			empties++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, empties)
}

func TestClaimSpecific(t *testing.T) {
	s := NewMemStore()
	ids := seedItems(t, s, 1)
	ctx := context.Background()

	it, err := s.Claim(ctx, ids[0], "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", it.ClaimedBy)

	// re-claim by the holder is a no-op
	again, err := s.Claim(ctx, ids[0], "alice")
	require.NoError(t, err)
	assert.Equal(t, StatusClaimed, again.Status)

	_, err = s.Claim(ctx, ids[0], "bob")
	assert.ErrorIs(t, err, ErrAlreadyClaimed)

	_, err = s.Claim(ctx, "no-such-id", "bob")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReleaseThenClaimNextReturnsSameItem(t *testing.T) {
	s := NewMemStore()
	ids := seedItems(t, s, 1)
	ctx := context.Background()

	_, err := s.Claim(ctx, ids[0], "alice")
	require.NoError(t, err)

	released, err := s.Release(ctx, ids[0], "alice")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, released.Status)
	assert.Empty(t, released.ClaimedBy)

	// the item is not lost: it comes back to the next claimer
	it, err := s.ClaimNext(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, ids[0], it.ID)
}

func TestReleaseRejectsNonHolder(t *testing.T) {
	s := NewMemStore()
	ids := seedItems(t, s, 1)
	ctx := context.Background()

	_, err := s.Claim(ctx, ids[0], "alice")
	require.NoError(t, err)

	_, err = s.Release(ctx, ids[0], "bob")
	assert.ErrorIs(t, err, ErrNotOwner)

	// the claim survived the rejected release
	it, err := s.Get(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, "alice", it.ClaimedBy)
}

func TestReleaseOfPendingItem(t *testing.T) {
	s := NewMemStore()
	ids := seedItems(t, s, 1)

	_, err := s.Release(context.Background(), ids[0], "alice")
	assert.ErrorIs(t, err, ErrNotClaimed)
}

func TestSubmitCompletesItem(t *testing.T) {
	s := NewMemStore()
	ids := seedItems(t, s, 1)
	ctx := context.Background()

	_, err := s.Claim(ctx, ids[0], "alice")
	require.NoError(t, err)

	it, err := s.Submit(ctx, ids[0], "alice", DecisionPass, "looks right", 42)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, it.Status)
	assert.Equal(t, DecisionPass, it.Decision)
	assert.Equal(t, "looks right", it.Feedback)
	assert.Equal(t, 42, it.TimeSpentSeconds)
	require.NotNil(t, it.CompletedAt)
}

func TestSubmitFromNonHolderLeavesItemUnchanged(t *testing.T) {
	s := NewMemStore()
	ids := seedItems(t, s, 1)
	ctx := context.Background()

	_, err := s.Claim(ctx, ids[0], "alice")
	require.NoError(t, err)

	_, err = s.Submit(ctx, ids[0], "bob", DecisionFail, "", 0)
	assert.ErrorIs(t, err, ErrNotOwner)

	it, err := s.Get(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, StatusClaimed, it.Status)
	assert.Equal(t, "alice", it.ClaimedBy)
	assert.Empty(t, it.Decision)
}

// A completed item is immutable: a second submit with a different
// decision fails and the recorded decision stays what it was.
func TestDoubleSubmitKeepsFirstDecision(t *testing.T) {
	s := NewMemStore()
	ids := seedItems(t, s, 1)
	ctx := context.Background()

	_, err := s.Claim(ctx, ids[0], "alice")
	require.NoError(t, err)
	_, err = s.Submit(ctx, ids[0], "alice", DecisionEdgeCase, "odd locale handling", 10)
	require.NoError(t, err)

	_, err = s.Submit(ctx, ids[0], "alice", DecisionPass, "changed my mind", 12)
	require.Error(t, err)

	it, err := s.Get(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, DecisionEdgeCase, it.Decision)
	assert.Equal(t, "odd locale handling", it.Feedback)
}

// Repeating the byte-identical submit is idempotent for the reviewer
// who completed the item.
func TestSubmitIdenticalRepeatIsIdempotent(t *testing.T) {
	s := NewMemStore()
	ids := seedItems(t, s, 1)
	ctx := context.Background()

	_, err := s.Claim(ctx, ids[0], "alice")
	require.NoError(t, err)
	first, err := s.Submit(ctx, ids[0], "alice", DecisionPass, "ok", 5)
	require.NoError(t, err)

	repeat, err := s.Submit(ctx, ids[0], "alice", DecisionPass, "ok", 5)
	require.NoError(t, err)
	assert.Equal(t, first.Decision, repeat.Decision)
	assert.Equal(t, first.CompletedAt, repeat.CompletedAt)
}

func TestListFilterAndPagination(t *testing.T) {
	s := NewMemStore()
	ids := seedItems(t, s, 5)
	ctx := context.Background()

	_, err := s.Claim(ctx, ids[0], "alice")
	require.NoError(t, err)
	_, err = s.Claim(ctx, ids[1], "bob")
	require.NoError(t, err)
	_, err = s.Submit(ctx, ids[1], "bob", DecisionFail, "broken", 7)
	require.NoError(t, err)

	pending, total, err := s.List(ctx, Filter{Status: StatusPending, Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, pending, 2)

	page2, _, err := s.List(ctx, Filter{Status: StatusPending, Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, page2, 1)

	mine, total, err := s.List(ctx, Filter{Status: StatusClaimed, Reviewer: "alice", Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, mine, 1)
	assert.Equal(t, ids[0], mine[0].ID)
}

func TestStatsProjection(t *testing.T) {
	s := NewMemStore()
	ids := seedItems(t, s, 4)
	ctx := context.Background()

	_, err := s.Claim(ctx, ids[0], "alice")
	require.NoError(t, err)
	_, err = s.Claim(ctx, ids[1], "bob")
	require.NoError(t, err)
	_, err = s.Submit(ctx, ids[1], "bob", DecisionPass, "", 3)
	require.NoError(t, err)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Pending: 2, Claimed: 1, Completed: 1, Total: 4}, st)
}
