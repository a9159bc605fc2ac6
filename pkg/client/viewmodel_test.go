package client

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reviewq/internal/api"
	"reviewq/pkg/bus"
	"reviewq/pkg/queue"
)

// fakeAPI implements QueueAPI with overridable function fields and
// counts List calls so tests can assert on refreshes.
type fakeAPI struct {
	claimNext func(ctx context.Context) (*queue.Item, error)
	claim     func(ctx context.Context, id string) (*queue.Item, error)
	release   func(ctx context.Context, id string) (*queue.Item, error)
	submit    func(ctx context.Context, id string, d queue.Decision, fb string, ts int) (*queue.Item, error)
	get       func(ctx context.Context, id string) (*queue.Item, error)

	lists int
	snap  api.QueueSnapshot
}

func (f *fakeAPI) ClaimNext(ctx context.Context) (*queue.Item, error) { return f.claimNext(ctx) }
func (f *fakeAPI) Claim(ctx context.Context, id string) (*queue.Item, error) {
	return f.claim(ctx, id)
}
func (f *fakeAPI) Release(ctx context.Context, id string) (*queue.Item, error) {
	return f.release(ctx, id)
}
func (f *fakeAPI) Submit(ctx context.Context, id string, d queue.Decision, fb string, ts int) (*queue.Item, error) {
	return f.submit(ctx, id, d, fb, ts)
}
func (f *fakeAPI) Get(ctx context.Context, id string) (*queue.Item, error) { return f.get(ctx, id) }
func (f *fakeAPI) List(_ context.Context, _ queue.Filter) (*api.QueueSnapshot, error) {
	f.lists++
	return &f.snap, nil
}

func pendingItem(id string) *queue.Item {
	return &queue.Item{ID: id, Status: queue.StatusPending, ScenarioID: "greet-intent"}
}

func claimedItem(id, by string) *queue.Item {
	return &queue.Item{ID: id, Status: queue.StatusClaimed, ClaimedBy: by, ScenarioID: "greet-intent"}
}

func TestClaimNextEmptyQueueIsAnOutcome(t *testing.T) {
	f := &fakeAPI{
		claimNext: func(context.Context) (*queue.Item, error) { return nil, queue.ErrEmptyQueue },
	}
	vm := NewViewModel(f, 10)

	ok, err := vm.ClaimNext(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, vm.Review())
}

func TestClaimNextOpensSession(t *testing.T) {
	f := &fakeAPI{
		claimNext: func(context.Context) (*queue.Item, error) { return claimedItem("i1", "alice"), nil },
	}
	vm := NewViewModel(f, 10)

	ok, err := vm.ClaimNext(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	require.NotNil(t, vm.Review())
	assert.Equal(t, "i1", vm.Review().Item.ID)
	assert.False(t, vm.Review().ReadOnly)
}

func TestOpenItemClaimsPending(t *testing.T) {
	var claimedID string
	f := &fakeAPI{
		get: func(_ context.Context, id string) (*queue.Item, error) { return pendingItem(id), nil },
		claim: func(_ context.Context, id string) (*queue.Item, error) {
			claimedID = id
			return claimedItem(id, "alice"), nil
		},
	}
	vm := NewViewModel(f, 10)

	require.NoError(t, vm.OpenItem(context.Background(), "i1"))
	assert.Equal(t, "i1", claimedID)
	require.NotNil(t, vm.Review())
	assert.False(t, vm.Review().ReadOnly)
	assert.Empty(t, vm.Claiming())
}

func TestOpenItemLostClaimRace(t *testing.T) {
	f := &fakeAPI{
		get: func(_ context.Context, id string) (*queue.Item, error) { return pendingItem(id), nil },
		claim: func(_ context.Context, id string) (*queue.Item, error) {
			return nil, queue.ErrAlreadyClaimed
		},
	}
	vm := NewViewModel(f, 10)

	err := vm.OpenItem(context.Background(), "i1")
	require.ErrorIs(t, err, queue.ErrAlreadyClaimed)
	assert.Nil(t, vm.Review())
	assert.Empty(t, vm.Claiming())
	// the lost race forces a reconciling refresh
	assert.Equal(t, 1, f.lists)
}

func TestOpenCompletedItemIsReadOnly(t *testing.T) {
	f := &fakeAPI{
		get: func(_ context.Context, id string) (*queue.Item, error) {
			now := time.Now()
			return &queue.Item{ID: id, Status: queue.StatusCompleted, Decision: queue.DecisionPass, CompletedAt: &now}, nil
		},
	}
	vm := NewViewModel(f, 10)

	require.NoError(t, vm.OpenItem(context.Background(), "i1"))
	require.NotNil(t, vm.Review())
	assert.True(t, vm.Review().ReadOnly)

	err := vm.SubmitDecision(context.Background(), queue.DecisionFail)
	require.Error(t, err)
}

func TestSubmitDecisionSuccess(t *testing.T) {
	var gotFeedback string
	f := &fakeAPI{
		claimNext: func(context.Context) (*queue.Item, error) { return claimedItem("i1", "alice"), nil },
		submit: func(_ context.Context, id string, d queue.Decision, fb string, ts int) (*queue.Item, error) {
			gotFeedback = fb
			it := claimedItem(id, "alice")
			it.Status = queue.StatusCompleted
			it.Decision = d
			return it, nil
		},
	}
	vm := NewViewModel(f, 10)

	_, err := vm.ClaimNext(context.Background())
	require.NoError(t, err)
	vm.SetFeedback("wrong article")

	require.NoError(t, vm.SubmitDecision(context.Background(), queue.DecisionFail))
	assert.Equal(t, "wrong article", gotFeedback)
	assert.Nil(t, vm.Review())
	assert.Empty(t, vm.Draft())
	assert.Equal(t, 1, f.lists)
}

func TestSubmitConflictPreservesDraft(t *testing.T) {
	f := &fakeAPI{
		claimNext: func(context.Context) (*queue.Item, error) { return claimedItem("i1", "alice"), nil },
		submit: func(_ context.Context, _ string, _ queue.Decision, _ string, _ int) (*queue.Item, error) {
			return nil, queue.ErrNotOwner
		},
	}
	vm := NewViewModel(f, 10)

	_, err := vm.ClaimNext(context.Background())
	require.NoError(t, err)
	vm.SetFeedback("half-written note")

	err = vm.SubmitDecision(context.Background(), queue.DecisionFail)
	require.ErrorIs(t, err, queue.ErrNotOwner)
	assert.Nil(t, vm.Review())
	assert.Equal(t, "half-written note", vm.Draft())
	assert.Equal(t, 1, f.lists)
}

func TestDraftCarriesIntoNextSession(t *testing.T) {
	f := &fakeAPI{
		claimNext: func(context.Context) (*queue.Item, error) { return claimedItem("i2", "alice"), nil },
		submit: func(_ context.Context, _ string, _ queue.Decision, _ string, _ int) (*queue.Item, error) {
			return nil, queue.ErrNotClaimed
		},
	}
	vm := NewViewModel(f, 10)

	_, err := vm.ClaimNext(context.Background())
	require.NoError(t, err)
	vm.SetFeedback("keep me")
	require.Error(t, vm.SubmitDecision(context.Background(), queue.DecisionFail))
	require.Equal(t, "keep me", vm.Draft())

	_, err = vm.ClaimNext(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "keep me", vm.Review().Feedback)
	assert.Empty(t, vm.Draft())
}

func TestCloseReviewReleasesItem(t *testing.T) {
	var releasedID string
	f := &fakeAPI{
		claimNext: func(context.Context) (*queue.Item, error) { return claimedItem("i1", "alice"), nil },
		release: func(_ context.Context, id string) (*queue.Item, error) {
			releasedID = id
			return pendingItem(id), nil
		},
	}
	vm := NewViewModel(f, 10)

	_, err := vm.ClaimNext(context.Background())
	require.NoError(t, err)
	require.NoError(t, vm.CloseReview(context.Background()))
	assert.Equal(t, "i1", releasedID)
	assert.Nil(t, vm.Review())
}

func TestCloseReadOnlyReviewSkipsRelease(t *testing.T) {
	f := &fakeAPI{
		get: func(_ context.Context, id string) (*queue.Item, error) {
			now := time.Now()
			return &queue.Item{ID: id, Status: queue.StatusCompleted, CompletedAt: &now}, nil
		},
		release: func(_ context.Context, id string) (*queue.Item, error) {
			t.Fatal("release must not be called for a read-only session")
			return nil, nil
		},
	}
	vm := NewViewModel(f, 10)

	require.NoError(t, vm.OpenItem(context.Background(), "i1"))
	require.NoError(t, vm.CloseReview(context.Background()))
	assert.Nil(t, vm.Review())
}

func TestRefreshLoadsSnapshot(t *testing.T) {
	f := &fakeAPI{snap: api.QueueSnapshot{
		Items: []queue.Item{*pendingItem("i1")},
		Total: 7,
		Stats: queue.Stats{Pending: 7, Total: 7},
	}}
	vm := NewViewModel(f, 10)
	require.Equal(t, StateIdle, vm.State())

	require.NoError(t, vm.Refresh(context.Background()))
	assert.Equal(t, StateReady, vm.State())
	assert.Equal(t, 7, vm.Total())
	assert.Len(t, vm.Items(), 1)
	assert.Equal(t, 7, vm.Stats().Pending)
}

func TestOnQueueEventTriggersRefresh(t *testing.T) {
	f := &fakeAPI{}
	vm := NewViewModel(f, 10)

	vm.OnQueueEvent(context.Background(), bus.Event{Type: bus.EventClaimed, ItemID: "i1"})
	assert.Equal(t, 1, f.lists)

	// analysis events do not change queue state
	vm.OnQueueEvent(context.Background(), bus.Event{Type: bus.EventAnalysisCompleted})
	assert.Equal(t, 1, f.lists)
}

func TestWatchStopsWhenChannelCloses(t *testing.T) {
	f := &fakeAPI{}
	vm := NewViewModel(f, 10)

	events := make(chan bus.Event, 2)
	events <- bus.Event{Type: bus.EventCompleted}
	events <- bus.Event{Type: bus.EventReleased}
	close(events)

	done := make(chan struct{})
	go func() {
		vm.Watch(context.Background(), events)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watch did not stop on channel close")
	}
	assert.Equal(t, 2, f.lists)
}
