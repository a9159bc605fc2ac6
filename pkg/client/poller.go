package client

import (
	"context"
	"errors"
	"log"
	"time"

	"reviewq/pkg/analysis"
)

// ErrPollTimeout is the client-local outcome of giving up on a task
// that never reached a terminal status. It is distinct from a server
// failure: the job may still be running server-side, and a later
// AnalysisStatus call can still observe its result.
var ErrPollTimeout = errors.New("analysis polling timed out")

// StatusReader is the slice of Client the poller needs.
type StatusReader interface {
	AnalysisStatus(ctx context.Context, taskID string) (*analysis.Task, error)
}

// Poller repeatedly reads a task's status until it is terminal, the
// overall timeout elapses, or ctx is cancelled. Both timers live inside
// Await and are torn down together on every exit path, so an abandoned
// poll never leaks a ticker.
type Poller struct {
	reader   StatusReader
	interval time.Duration
	timeout  time.Duration
}

// NewPoller creates a Poller with the given interval and overall
// timeout; zero values fall back to 2s and 15m.
func NewPoller(reader StatusReader, interval, timeout time.Duration) *Poller {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if timeout <= 0 {
		timeout = 15 * time.Minute
	}
	return &Poller{reader: reader, interval: interval, timeout: timeout}
}

// Await blocks until the task reaches a terminal status and returns it.
// Returns ErrPollTimeout when the overall timeout elapses first, or
// ctx.Err() on cancellation. Status reads are idempotent, so a
// redundant poller on the same task is harmless.
func (p *Poller) Await(ctx context.Context, taskID string) (*analysis.Task, error) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	deadline := time.NewTimer(p.timeout)
	defer deadline.Stop()

	// First read immediately; the task may already be terminal.
	if t, err := p.check(ctx, taskID); t != nil || err != nil {
		return t, err
	}

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			log.Printf("poller: task=%s gave up after %s", taskID, p.timeout)
			return nil, ErrPollTimeout
		case <-ticker.C:
			if t, err := p.check(ctx, taskID); t != nil || err != nil {
				return t, err
			}
		}
	}
}

// check reads the status once. Returns (nil, nil) when the task exists
// but is not yet terminal; transport errors are tolerated until the
// timeout, an unknown task is fatal immediately.
func (p *Poller) check(ctx context.Context, taskID string) (*analysis.Task, error) {
	t, err := p.reader.AnalysisStatus(ctx, taskID)
	if err != nil {
		if errors.Is(err, analysis.ErrTaskNotFound) {
			return nil, err
		}
		log.Printf("poller: task=%s status read failed: %v", taskID, err)
		return nil, nil
	}
	if t.Status.Terminal() {
		return t, nil
	}
	return nil, nil
}
