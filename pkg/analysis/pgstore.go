package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgPatternStore is a PostgreSQL-backed PatternStore.
type PgPatternStore struct {
	pool *pgxpool.Pool
}

// NewPgPatternStore creates a PgPatternStore.
func NewPgPatternStore(pool *pgxpool.Pool) *PgPatternStore {
	return &PgPatternStore{pool: pool}
}

// EnsureTable creates the failure_patterns table if it doesn't exist.
func (s *PgPatternStore) EnsureTable(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS failure_patterns (
			id              TEXT PRIMARY KEY,
			pattern_key     TEXT NOT NULL UNIQUE,
			language_code   TEXT NOT NULL DEFAULT '',
			scenario_ids    TEXT[] DEFAULT '{}',
			item_count      INTEGER NOT NULL DEFAULT 0,
			sample_feedback TEXT NOT NULL DEFAULT '',
			first_seen      TIMESTAMPTZ NOT NULL,
			last_seen       TIMESTAMPTZ NOT NULL,
			updated_at      TIMESTAMPTZ DEFAULT NOW()
		)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_failure_patterns_language ON failure_patterns(language_code)`)
	return err
}

// Upsert stores p keyed by PatternKey. Only one analysis run is active
// at a time, so update-then-insert is enough here.
func (s *PgPatternStore) Upsert(ctx context.Context, p *Pattern) (bool, error) {
	now := time.Now().Truncate(time.Microsecond)
	tag, err := s.pool.Exec(ctx, `
		UPDATE failure_patterns SET scenario_ids = $1, item_count = $2, sample_feedback = $3, last_seen = $4, updated_at = $5
		WHERE pattern_key = $6`,
		p.ScenarioIDs, p.ItemCount, p.SampleFeedback, p.LastSeen, now, p.PatternKey)
	if err != nil {
		return false, fmt.Errorf("update pattern: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return false, nil
	}

	p.ID = uuid.Must(uuid.NewV7()).String()
	p.UpdatedAt = now
	_, err = s.pool.Exec(ctx, `
		INSERT INTO failure_patterns (id, pattern_key, language_code, scenario_ids, item_count, sample_feedback, first_seen, last_seen, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.PatternKey, p.LanguageCode, p.ScenarioIDs, p.ItemCount, p.SampleFeedback, p.FirstSeen, p.LastSeen, p.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("insert pattern: %w", err)
	}
	return true, nil
}

// List returns the most recently updated patterns.
func (s *PgPatternStore) List(ctx context.Context, limit int) ([]Pattern, error) {
	if limit < 1 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, pattern_key, language_code, scenario_ids, item_count, sample_feedback, first_seen, last_seen, updated_at
		FROM failure_patterns ORDER BY updated_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list patterns: %w", err)
	}
	defer rows.Close()

	var patterns []Pattern
	for rows.Next() {
		var p Pattern
		if err := rows.Scan(&p.ID, &p.PatternKey, &p.LanguageCode, &p.ScenarioIDs, &p.ItemCount,
			&p.SampleFeedback, &p.FirstSeen, &p.LastSeen, &p.UpdatedAt); err != nil {
			return nil, err
		}
		patterns = append(patterns, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration: %w", err)
	}
	return patterns, nil
}
