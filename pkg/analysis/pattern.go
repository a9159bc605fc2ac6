package analysis

import (
	"context"
	"time"
)

// Pattern is a recurring failure shape discovered across completed
// items: a group of fail/edge_case reviews in one language whose
// feedback reads alike.
type Pattern struct {
	ID             string    `json:"id"`
	PatternKey     string    `json:"pattern_key"`
	LanguageCode   string    `json:"language_code"`
	ScenarioIDs    []string  `json:"scenario_ids"`
	ItemCount      int       `json:"item_count"`
	SampleFeedback string    `json:"sample_feedback"`
	FirstSeen      time.Time `json:"first_seen"`
	LastSeen       time.Time `json:"last_seen"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// PatternStore is the contract for pattern persistence.
type PatternStore interface {
	// Upsert stores p keyed by PatternKey, reporting whether a new
	// pattern was created (false means an existing one was updated).
	Upsert(ctx context.Context, p *Pattern) (bool, error)
	List(ctx context.Context, limit int) ([]Pattern, error)
	EnsureTable(ctx context.Context) error
}
