package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const itemColumns = `id, status, claimed_by, scenario_id, execution_id, language_code, step_order, review_payload, decision, feedback, time_spent_seconds, created_at, updated_at, completed_at`

// PgStore is a PostgreSQL-backed item store. State transitions are
// conditional UPDATEs guarded on the current status (and claim holder),
// so exclusivity holds across concurrent server processes without any
// in-process locking.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a PgStore.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// EnsureTable creates the validation_items table if it doesn't exist.
func (s *PgStore) EnsureTable(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS validation_items (
			id                 TEXT PRIMARY KEY,
			status             TEXT NOT NULL DEFAULT 'pending',
			claimed_by         TEXT NOT NULL DEFAULT '',
			scenario_id        TEXT NOT NULL DEFAULT '',
			execution_id       TEXT NOT NULL DEFAULT '',
			language_code      TEXT NOT NULL DEFAULT '',
			step_order         INTEGER NOT NULL DEFAULT 0,
			review_payload     JSONB NOT NULL DEFAULT '{}',
			decision           TEXT NOT NULL DEFAULT '',
			feedback           TEXT NOT NULL DEFAULT '',
			time_spent_seconds INTEGER NOT NULL DEFAULT 0,
			created_at         TIMESTAMPTZ DEFAULT NOW(),
			updated_at         TIMESTAMPTZ DEFAULT NOW(),
			completed_at       TIMESTAMPTZ
		)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_validation_items_status ON validation_items(status)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_validation_items_created ON validation_items(created_at, id)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_validation_items_completed ON validation_items(completed_at) WHERE completed_at IS NOT NULL`)
	return err
}

// Create inserts a new pending item.
func (s *PgStore) Create(ctx context.Context, it *Item) (*Item, error) {
	cp := *it
	cp.ID = uuid.Must(uuid.NewV7()).String()
	now := time.Now().Truncate(time.Microsecond)
	cp.Status = StatusPending
	cp.ClaimedBy = ""
	cp.Decision = ""
	cp.CreatedAt = now
	cp.UpdatedAt = now
	if cp.ReviewPayload == nil {
		cp.ReviewPayload = map[string]any{}
	}

	payloadJSON, err := json.Marshal(cp.ReviewPayload)
	if err != nil {
		return nil, fmt.Errorf("marshal review payload: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO validation_items (id, status, claimed_by, scenario_id, execution_id, language_code, step_order, review_payload, decision, feedback, time_spent_seconds, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9, $10, $11, $12, $13)`,
		cp.ID, string(cp.Status), cp.ClaimedBy, cp.ScenarioID, cp.ExecutionID, cp.LanguageCode, cp.StepOrder,
		string(payloadJSON), string(cp.Decision), cp.Feedback, cp.TimeSpentSeconds, cp.CreatedAt, cp.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create item: %w", err)
	}
	return &cp, nil
}

// Get retrieves a single item by id.
func (s *PgStore) Get(ctx context.Context, id string) (*Item, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM validation_items WHERE id = $1`, id)
	it, err := scanItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get item %s: %w", id, err)
	}
	return it, nil
}

// ClaimNext atomically claims the oldest pending item for reviewer.
// SKIP LOCKED makes racing claimers pick distinct rows: each racer
// either wins a different item or sees an empty queue.
func (s *PgStore) ClaimNext(ctx context.Context, reviewer string) (*Item, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE validation_items SET status = 'claimed', claimed_by = $1, updated_at = $2
		WHERE id = (
			SELECT id FROM validation_items WHERE status = 'pending'
			ORDER BY created_at, id LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+itemColumns,
		reviewer, time.Now().Truncate(time.Microsecond))
	it, err := scanItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEmptyQueue
		}
		return nil, fmt.Errorf("claim next: %w", err)
	}
	return it, nil
}

// Claim claims a specific item for reviewer. The update only fires when
// the item is still pending; otherwise the current row decides the
// outcome.
func (s *PgStore) Claim(ctx context.Context, id, reviewer string) (*Item, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE validation_items SET status = 'claimed', claimed_by = $1, updated_at = $2
		WHERE id = $3 AND status = 'pending'
		RETURNING `+itemColumns,
		reviewer, time.Now().Truncate(time.Microsecond), id)
	it, err := scanItem(row)
	if err == nil {
		return it, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("claim item %s: %w", id, err)
	}

	cur, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if cur.Status == StatusClaimed && cur.ClaimedBy == reviewer {
		// re-claim by the holder is a no-op
		return cur, nil
	}
	return nil, ErrAlreadyClaimed
}

// Release returns a claimed item to pending. Only the holder may release.
func (s *PgStore) Release(ctx context.Context, id, reviewer string) (*Item, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE validation_items SET status = 'pending', claimed_by = '', updated_at = $1
		WHERE id = $2 AND status = 'claimed' AND claimed_by = $3
		RETURNING `+itemColumns,
		time.Now().Truncate(time.Microsecond), id, reviewer)
	it, err := scanItem(row)
	if err == nil {
		return it, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("release item %s: %w", id, err)
	}

	cur, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if cur.Status == StatusClaimed {
		return nil, ErrNotOwner
	}
	return nil, ErrNotClaimed
}

// Submit completes a claimed item with the reviewer's decision. Only the
// holder may submit; a completed item is never rewritten.
func (s *PgStore) Submit(ctx context.Context, id, reviewer string, decision Decision, feedback string, timeSpent int) (*Item, error) {
	now := time.Now().Truncate(time.Microsecond)
	row := s.pool.QueryRow(ctx, `
		UPDATE validation_items SET status = 'completed', decision = $1, feedback = $2, time_spent_seconds = $3, updated_at = $4, completed_at = $4
		WHERE id = $5 AND status = 'claimed' AND claimed_by = $6
		RETURNING `+itemColumns,
		string(decision), feedback, timeSpent, now, id, reviewer)
	it, err := scanItem(row)
	if err == nil {
		return it, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("submit item %s: %w", id, err)
	}

	cur, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	switch cur.Status {
	case StatusClaimed:
		return nil, ErrNotOwner
	case StatusCompleted:
		if cur.ClaimedBy == reviewer && cur.Decision == decision && cur.Feedback == feedback {
			// identical repeat from the reviewer who completed it
			return cur, nil
		}
		return nil, ErrNotClaimed
	default:
		return nil, ErrNotClaimed
	}
}

// List returns one page of items plus the total matching count, oldest
// first.
func (s *PgStore) List(ctx context.Context, f Filter) ([]Item, int, error) {
	where := ""
	args := []any{}
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = fmt.Sprintf("WHERE status = $%d", len(args))
		if f.Reviewer != "" && f.Status == StatusClaimed {
			args = append(args, f.Reviewer)
			where += fmt.Sprintf(" AND claimed_by = $%d", len(args))
		}
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM validation_items `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count items: %w", err)
	}

	page := f.Page
	if page < 1 {
		page = 1
	}
	size := f.PageSize
	if size < 1 {
		size = 50
	}
	args = append(args, size, (page-1)*size)
	query := fmt.Sprintf(`SELECT %s FROM validation_items %s ORDER BY created_at, id LIMIT $%d OFFSET $%d`,
		itemColumns, where, len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	items, err := scanItemRows(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// CompletedSince returns items completed at or after since.
func (s *PgStore) CompletedSince(ctx context.Context, since time.Time) ([]Item, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+itemColumns+` FROM validation_items
		WHERE status = 'completed' AND completed_at >= $1
		ORDER BY completed_at, id`, since)
	if err != nil {
		return nil, fmt.Errorf("completed since: %w", err)
	}
	defer rows.Close()
	return scanItemRows(rows)
}

// Stats returns counts by status.
func (s *PgStore) Stats(ctx context.Context) (Stats, error) {
	rows, err := s.pool.Query(ctx, `SELECT status, COUNT(*) FROM validation_items GROUP BY status`)
	if err != nil {
		return Stats{}, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	var st Stats
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return Stats{}, err
		}
		switch Status(status) {
		case StatusPending:
			st.Pending = n
		case StatusClaimed:
			st.Claimed = n
		case StatusCompleted:
			st.Completed = n
		}
		st.Total += n
	}
	if err := rows.Err(); err != nil {
		return Stats{}, fmt.Errorf("row iteration: %w", err)
	}
	return st, nil
}

func scanItem(row pgx.Row) (*Item, error) {
	var it Item
	var status, decision string
	var payloadJSON []byte
	err := row.Scan(&it.ID, &status, &it.ClaimedBy, &it.ScenarioID, &it.ExecutionID, &it.LanguageCode, &it.StepOrder,
		&payloadJSON, &decision, &it.Feedback, &it.TimeSpentSeconds, &it.CreatedAt, &it.UpdatedAt, &it.CompletedAt)
	if err != nil {
		return nil, err
	}
	it.Status = Status(status)
	it.Decision = Decision(decision)
	if err := json.Unmarshal(payloadJSON, &it.ReviewPayload); err != nil {
		it.ReviewPayload = map[string]any{}
	}
	return &it, nil
}

func scanItemRows(rows pgx.Rows) ([]Item, error) {
	var items []Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration: %w", err)
	}
	return items, nil
}
