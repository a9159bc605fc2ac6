package client

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"reviewq/internal/api"
	"reviewq/pkg/bus"
	"reviewq/pkg/queue"
)

// SessionState is the view model's load cycle. ready is re-entered on
// every refresh.
type SessionState string

const (
	StateIdle    SessionState = "idle"
	StateLoading SessionState = "loading"
	StateReady   SessionState = "ready"
)

// QueueAPI is the surface of Client the view model drives.
type QueueAPI interface {
	ClaimNext(ctx context.Context) (*queue.Item, error)
	Claim(ctx context.Context, id string) (*queue.Item, error)
	Release(ctx context.Context, id string) (*queue.Item, error)
	Submit(ctx context.Context, id string, decision queue.Decision, feedback string, timeSpent int) (*queue.Item, error)
	Get(ctx context.Context, id string) (*queue.Item, error)
	List(ctx context.Context, f queue.Filter) (*api.QueueSnapshot, error)
}

// ReviewSession is an item open for review. Feedback is the reviewer's
// draft; it survives a failed submit so typed text is never lost.
type ReviewSession struct {
	Item     queue.Item
	ReadOnly bool
	Feedback string
	openedAt time.Time
}

// Elapsed is the whole seconds this item has been open. It is derived
// from the monotonic clock, so it keeps advancing while a submit call
// is in flight. Advisory telemetry only; exclusivity never depends on
// it.
func (r *ReviewSession) Elapsed() int {
	return int(time.Since(r.openedAt).Seconds())
}

// ViewModel is a reviewer's local view of the queue: stats plus one
// filtered, paginated page, kept consistent by event notifications. The
// server is the single source of truth; the view model only caches what
// the server confirmed, plus one transient "claiming" marker that is
// reconciled or rolled back on the server's response.
type ViewModel struct {
	api      QueueAPI
	pageSize int

	state    SessionState
	filter   queue.Status
	page     int
	items    []queue.Item
	total    int
	stats    queue.Stats
	review   *ReviewSession
	claiming string // item id with a claim in flight, "" otherwise
	draft    string // feedback preserved from a session that ended on a conflict
}

// NewViewModel creates an idle ViewModel.
func NewViewModel(qapi QueueAPI, pageSize int) *ViewModel {
	if pageSize < 1 {
		pageSize = 20
	}
	return &ViewModel{
		api:      qapi,
		pageSize: pageSize,
		state:    StateIdle,
		page:     1,
	}
}

// State returns the current load cycle state.
func (vm *ViewModel) State() SessionState { return vm.state }

// Items returns the current page.
func (vm *ViewModel) Items() []queue.Item { return vm.items }

// Total returns the count of items matching the current filter.
func (vm *ViewModel) Total() int { return vm.total }

// Stats returns the latest aggregate counts.
func (vm *ViewModel) Stats() queue.Stats { return vm.stats }

// Review returns the open review session, or nil.
func (vm *ViewModel) Review() *ReviewSession { return vm.review }

// Claiming returns the id of the item with a claim in flight, if any.
func (vm *ViewModel) Claiming() string { return vm.claiming }

// Draft returns feedback carried over from a review session that ended
// on a conflict, so the caller can offer it back to the reviewer.
func (vm *ViewModel) Draft() string { return vm.draft }

// SetFilter changes the status filter and reloads the first page.
func (vm *ViewModel) SetFilter(ctx context.Context, status queue.Status) error {
	vm.filter = status
	vm.page = 1
	return vm.Refresh(ctx)
}

// SetPage moves to the given page and reloads.
func (vm *ViewModel) SetPage(ctx context.Context, page int) error {
	if page < 1 {
		page = 1
	}
	vm.page = page
	return vm.Refresh(ctx)
}

// Refresh re-fetches the current page and stats from the server.
func (vm *ViewModel) Refresh(ctx context.Context) error {
	vm.state = StateLoading
	snap, err := vm.api.List(ctx, queue.Filter{
		Status:   vm.filter,
		Page:     vm.page,
		PageSize: vm.pageSize,
	})
	if err != nil {
		vm.state = StateIdle
		return fmt.Errorf("refresh queue: %w", err)
	}
	vm.items = snap.Items
	vm.total = snap.Total
	vm.stats = snap.Stats
	vm.state = StateReady
	return nil
}

// ClaimNext claims the oldest pending item and opens it for review.
// Returns false with a nil error when the queue is empty: nothing to
// claim is an outcome, not an error.
func (vm *ViewModel) ClaimNext(ctx context.Context) (bool, error) {
	it, err := vm.api.ClaimNext(ctx)
	if errors.Is(err, queue.ErrEmptyQueue) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	vm.openSession(it, false)
	return true, nil
}

// OpenItem opens an item for review. A pending item is claimed first;
// an item already claimed by this reviewer opens editable; a completed
// item opens read-only. An item held by someone else stays closed and
// the conflict is returned.
func (vm *ViewModel) OpenItem(ctx context.Context, id string) error {
	it, err := vm.api.Get(ctx, id)
	if err != nil {
		return err
	}

	switch it.Status {
	case queue.StatusPending:
		vm.claiming = id
		claimed, err := vm.api.Claim(ctx, id)
		vm.claiming = ""
		if err != nil {
			// someone else won the race; reconcile with the server's view
			if refreshErr := vm.Refresh(ctx); refreshErr != nil {
				log.Printf("viewmodel: refresh after claim conflict: %v", refreshErr)
			}
			return err
		}
		vm.openSession(claimed, false)
	case queue.StatusCompleted:
		vm.openSession(it, true)
	default:
		vm.openSession(it, false)
	}
	return nil
}

// SetFeedback updates the open session's feedback draft.
func (vm *ViewModel) SetFeedback(text string) {
	if vm.review != nil {
		vm.review.Feedback = text
	}
}

// SubmitDecision completes the open review. On success the session
// closes and the view refreshes. On an exclusivity conflict or a stale
// item the session also ends (the claim is gone), but the typed
// feedback is preserved in Draft and the error is returned for the
// caller to surface.
func (vm *ViewModel) SubmitDecision(ctx context.Context, decision queue.Decision) error {
	if vm.review == nil {
		return errors.New("no review session open")
	}
	if vm.review.ReadOnly {
		return errors.New("item is read-only")
	}

	session := vm.review
	_, err := vm.api.Submit(ctx, session.Item.ID, decision, session.Feedback, session.Elapsed())
	if err != nil {
		if errors.Is(err, queue.ErrNotOwner) || errors.Is(err, queue.ErrNotFound) || errors.Is(err, queue.ErrNotClaimed) {
			// The claim is gone. End the session, keep the draft, and
			// force a refresh so the stale view corrects itself.
			vm.draft = session.Feedback
			vm.review = nil
			if refreshErr := vm.Refresh(ctx); refreshErr != nil {
				log.Printf("viewmodel: refresh after submit conflict: %v", refreshErr)
			}
		}
		return err
	}

	vm.draft = ""
	vm.review = nil
	return vm.Refresh(ctx)
}

// CloseReview releases the open item back to the queue and ends the
// session. Read-only sessions just close.
func (vm *ViewModel) CloseReview(ctx context.Context) error {
	if vm.review == nil {
		return nil
	}
	session := vm.review
	vm.review = nil
	if session.ReadOnly {
		return nil
	}
	if _, err := vm.api.Release(ctx, session.Item.ID); err != nil {
		return err
	}
	return vm.Refresh(ctx)
}

// OnQueueEvent reacts to one bus notification: stats and the current
// page are re-derived from the server. The event itself is never
// applied to local state; it only signals that the view is stale.
func (vm *ViewModel) OnQueueEvent(ctx context.Context, e bus.Event) {
	switch e.Type {
	case bus.EventClaimed, bus.EventReleased, bus.EventCompleted:
		if err := vm.Refresh(ctx); err != nil {
			log.Printf("viewmodel: refresh on %s: %v", e.Type, err)
		}
	}
}

// Watch consumes events until the channel closes or ctx is cancelled.
// Wire it to Subscription.Events from Client.Stream.
func (vm *ViewModel) Watch(ctx context.Context, events <-chan bus.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			vm.OnQueueEvent(ctx, e)
		}
	}
}

func (vm *ViewModel) openSession(it *queue.Item, readOnly bool) {
	vm.review = &ReviewSession{
		Item:     *it,
		ReadOnly: readOnly,
		Feedback: vm.draft,
		openedAt: time.Now(),
	}
	vm.draft = ""
}
