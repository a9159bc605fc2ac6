// Package queue implements the shared validation work queue: the item
// model, persistence stores, and the claim coordinator that gives each
// reviewer an exclusive hold on the item they are reviewing.
package queue

import "time"

// Status is the lifecycle state of a validation item.
// pending -> claimed -> completed; a release moves claimed back to pending.
type Status string

const (
	StatusPending   Status = "pending"
	StatusClaimed   Status = "claimed"
	StatusCompleted Status = "completed"
)

// Decision is a reviewer's verdict on an item.
type Decision string

const (
	DecisionPass         Decision = "pass"
	DecisionFail         Decision = "fail"
	DecisionEdgeCase     Decision = "edge_case"
	DecisionCreateDefect Decision = "create_defect"
)

// Valid reports whether d is a known decision.
func (d Decision) Valid() bool {
	switch d {
	case DecisionPass, DecisionFail, DecisionEdgeCase, DecisionCreateDefect:
		return true
	default:
		return false
	}
}

// Item is one AI-generated test verdict awaiting human review.
// ScenarioID, ExecutionID, LanguageCode and StepOrder are descriptive
// and immutable after creation; ReviewPayload is the scoring data the
// reviewer sees and is opaque to this package.
type Item struct {
	ID               string         `json:"id"`
	Status           Status         `json:"status"`
	ClaimedBy        string         `json:"claimed_by,omitempty"`
	ScenarioID       string         `json:"scenario_id"`
	ExecutionID      string         `json:"execution_id"`
	LanguageCode     string         `json:"language_code"`
	StepOrder        int            `json:"step_order"`
	ReviewPayload    map[string]any `json:"review_payload"`
	Decision         Decision       `json:"decision,omitempty"`
	Feedback         string         `json:"feedback,omitempty"`
	TimeSpentSeconds int            `json:"time_spent_seconds"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	CompletedAt      *time.Time     `json:"completed_at,omitempty"`
}

// Stats is a projection of item counts by status. It carries no state of
// its own and is recomputed from the store on every read.
type Stats struct {
	Pending   int `json:"pending"`
	Claimed   int `json:"claimed"`
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

// Filter selects one page of the queue.
type Filter struct {
	Status   Status // empty = all statuses
	Reviewer string // with StatusClaimed, restrict to this reviewer's claims
	Page     int    // 1-based; values < 1 are treated as 1
	PageSize int
}
