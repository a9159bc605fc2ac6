package analysis

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemPatternStore is an in-memory PatternStore for the server's
// standalone mode and tests.
type MemPatternStore struct {
	mu       sync.Mutex
	patterns map[string]*Pattern // keyed by PatternKey
}

// NewMemPatternStore creates an empty MemPatternStore.
func NewMemPatternStore() *MemPatternStore {
	return &MemPatternStore{patterns: make(map[string]*Pattern)}
}

// Upsert stores p keyed by PatternKey.
func (s *MemPatternStore) Upsert(_ context.Context, p *Pattern) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().Truncate(time.Microsecond)
	if existing, ok := s.patterns[p.PatternKey]; ok {
		existing.ScenarioIDs = append([]string(nil), p.ScenarioIDs...)
		existing.ItemCount = p.ItemCount
		existing.SampleFeedback = p.SampleFeedback
		existing.LastSeen = p.LastSeen
		existing.UpdatedAt = now
		return false, nil
	}

	cp := *p
	cp.ID = uuid.Must(uuid.NewV7()).String()
	cp.ScenarioIDs = append([]string(nil), p.ScenarioIDs...)
	cp.UpdatedAt = now
	s.patterns[p.PatternKey] = &cp
	return true, nil
}

// List returns the most recently updated patterns.
func (s *MemPatternStore) List(_ context.Context, limit int) ([]Pattern, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Pattern
	for _, p := range s.patterns {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// EnsureTable is a no-op for the in-memory store.
func (s *MemPatternStore) EnsureTable(_ context.Context) error { return nil }
