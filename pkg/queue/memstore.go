package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemStore is an in-memory Store guarded by a mutex. It backs the
// server's standalone mode and the test suites; the mutual-exclusion
// guarantees are identical to PgStore's conditional updates.
type MemStore struct {
	mu    sync.Mutex
	items map[string]*Item
	order []string // ids in creation order, oldest first
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{items: make(map[string]*Item)}
}

// Create inserts a new pending item.
func (s *MemStore) Create(_ context.Context, it *Item) (*Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().Truncate(time.Microsecond)
	cp := *it
	cp.ID = uuid.Must(uuid.NewV7()).String()
	cp.Status = StatusPending
	cp.ClaimedBy = ""
	cp.Decision = ""
	cp.CreatedAt = now
	cp.UpdatedAt = now
	if cp.ReviewPayload == nil {
		cp.ReviewPayload = map[string]any{}
	}

	s.items[cp.ID] = &cp
	s.order = append(s.order, cp.ID)
	out := cp
	return &out, nil
}

// Get retrieves a single item by id.
func (s *MemStore) Get(_ context.Context, id string) (*Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *it
	return &cp, nil
}

// ClaimNext claims the oldest pending item for reviewer.
func (s *MemStore) ClaimNext(_ context.Context, reviewer string) (*Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.order {
		it := s.items[id]
		if it.Status != StatusPending {
			continue
		}
		it.Status = StatusClaimed
		it.ClaimedBy = reviewer
		it.UpdatedAt = time.Now().Truncate(time.Microsecond)
		cp := *it
		return &cp, nil
	}
	return nil, ErrEmptyQueue
}

// Claim claims a specific item for reviewer.
func (s *MemStore) Claim(_ context.Context, id, reviewer string) (*Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	switch {
	case it.Status == StatusPending:
		it.Status = StatusClaimed
		it.ClaimedBy = reviewer
		it.UpdatedAt = time.Now().Truncate(time.Microsecond)
	case it.Status == StatusClaimed && it.ClaimedBy == reviewer:
		// re-claim by the holder is a no-op
	default:
		return nil, ErrAlreadyClaimed
	}
	cp := *it
	return &cp, nil
}

// Release returns a claimed item to pending.
func (s *MemStore) Release(_ context.Context, id, reviewer string) (*Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	if it.Status != StatusClaimed {
		return nil, ErrNotClaimed
	}
	if it.ClaimedBy != reviewer {
		return nil, ErrNotOwner
	}
	it.Status = StatusPending
	it.ClaimedBy = ""
	it.UpdatedAt = time.Now().Truncate(time.Microsecond)
	cp := *it
	return &cp, nil
}

// Submit completes a claimed item with the reviewer's decision.
func (s *MemStore) Submit(_ context.Context, id, reviewer string, decision Decision, feedback string, timeSpent int) (*Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	switch it.Status {
	case StatusClaimed:
		if it.ClaimedBy != reviewer {
			return nil, ErrNotOwner
		}
	case StatusCompleted:
		// A repeat of the identical submit from the same reviewer is
		// idempotent; anything else must not touch the recorded decision.
		if it.ClaimedBy == reviewer && it.Decision == decision && it.Feedback == feedback {
			cp := *it
			return &cp, nil
		}
		return nil, ErrNotClaimed
	default:
		return nil, ErrNotClaimed
	}

	now := time.Now().Truncate(time.Microsecond)
	it.Status = StatusCompleted
	it.Decision = decision
	it.Feedback = feedback
	it.TimeSpentSeconds = timeSpent
	it.UpdatedAt = now
	it.CompletedAt = &now
	cp := *it
	return &cp, nil
}

// List returns one page of items plus the total matching count.
func (s *MemStore) List(_ context.Context, f Filter) ([]Item, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []Item
	for _, id := range s.order {
		it := s.items[id]
		if !matchesFilter(it, f) {
			continue
		}
		matched = append(matched, *it)
	}

	page := f.Page
	if page < 1 {
		page = 1
	}
	size := f.PageSize
	if size < 1 {
		size = len(matched)
	}

	total := len(matched)
	start := (page - 1) * size
	if start >= total {
		return []Item{}, total, nil
	}
	end := start + size
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

// CompletedSince returns items completed at or after since.
func (s *MemStore) CompletedSince(_ context.Context, since time.Time) ([]Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Item
	for _, id := range s.order {
		it := s.items[id]
		if it.Status != StatusCompleted || it.CompletedAt == nil {
			continue
		}
		if it.CompletedAt.Before(since) {
			continue
		}
		out = append(out, *it)
	}
	return out, nil
}

// Stats returns counts by status.
func (s *MemStore) Stats(_ context.Context) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var st Stats
	for _, it := range s.items {
		switch it.Status {
		case StatusPending:
			st.Pending++
		case StatusClaimed:
			st.Claimed++
		case StatusCompleted:
			st.Completed++
		}
	}
	st.Total = len(s.items)
	return st, nil
}

// EnsureTable is a no-op for the in-memory store.
func (s *MemStore) EnsureTable(_ context.Context) error { return nil }

func matchesFilter(it *Item, f Filter) bool {
	if f.Status != "" && it.Status != f.Status {
		return false
	}
	if f.Reviewer != "" && f.Status == StatusClaimed && it.ClaimedBy != f.Reviewer {
		return false
	}
	return true
}
