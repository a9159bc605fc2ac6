// Package analysis runs asynchronous failure-pattern analysis over
// completed validation items. Jobs are started without blocking the
// caller and tracked through an idempotent status read; the patterns
// they discover are persisted for the queue's downstream views.
package analysis

import (
	"errors"
	"time"
)

// ErrTaskNotFound means the task id is unknown to this runner.
var ErrTaskNotFound = errors.New("analysis task not found")

// TaskStatus is the lifecycle state of an analysis task.
// queued -> running -> succeeded | failed. A task reaches a terminal
// state exactly once and never leaves it.
type TaskStatus string

const (
	TaskQueued    TaskStatus = "queued"
	TaskRunning   TaskStatus = "running"
	TaskSucceeded TaskStatus = "succeeded"
	TaskFailed    TaskStatus = "failed"
)

// Terminal reports whether no further transition can occur.
func (s TaskStatus) Terminal() bool {
	return s == TaskSucceeded || s == TaskFailed
}

// Params control one analysis run.
type Params struct {
	LookbackDays        int     `json:"lookback_days"`
	MinPatternSize      int     `json:"min_pattern_size"`
	SimilarityThreshold float64 `json:"similarity_threshold"`
}

func (p Params) withDefaults() Params {
	if p.LookbackDays <= 0 {
		p.LookbackDays = 30
	}
	if p.MinPatternSize <= 0 {
		p.MinPatternSize = 3
	}
	if p.SimilarityThreshold <= 0 || p.SimilarityThreshold > 1 {
		p.SimilarityThreshold = 0.6
	}
	return p
}

// Result summarizes a successful run.
type Result struct {
	PatternsDiscovered int `json:"patterns_discovered"`
	PatternsNew        int `json:"patterns_new"`
	PatternsUpdated    int `json:"patterns_updated"`
}

// Task is the handle returned by Start and reported by Status.
// Result is set only on success, Error only on failure.
type Task struct {
	ID         string     `json:"task_id"`
	Status     TaskStatus `json:"status"`
	Params     Params     `json:"params"`
	Result     *Result    `json:"result,omitempty"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}
