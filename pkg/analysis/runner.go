package analysis

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"reviewq/pkg/bus"
)

// Publisher is the slice of the event bus the runner needs.
type Publisher interface {
	Publish(e bus.Event)
}

// Runner starts analysis tasks in the background and answers status
// reads. Task records live in memory: a task handle is a promise about
// this process, and its terminal payload stays readable for as long as
// the process runs, so a client that gave up polling can still come back
// and observe the outcome.
type Runner struct {
	source   ItemSource
	patterns PatternStore
	pub      Publisher

	mu    sync.Mutex
	tasks map[string]*Task
}

// NewRunner creates a Runner.
func NewRunner(source ItemSource, patterns PatternStore, pub Publisher) *Runner {
	return &Runner{
		source:   source,
		patterns: patterns,
		pub:      pub,
		tasks:    make(map[string]*Task),
	}
}

// Start registers a task and launches the analysis in a goroutine. It
// never runs the analysis synchronously in the calling request.
func (r *Runner) Start(p Params) (string, error) {
	p = p.withDefaults()
	t := &Task{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Status:    TaskQueued,
		Params:    p,
		StartedAt: time.Now().Truncate(time.Microsecond),
	}

	r.mu.Lock()
	r.tasks[t.ID] = t
	r.mu.Unlock()

	log.Printf("analysis: start task=%s lookback=%dd min_size=%d threshold=%.2f",
		t.ID, p.LookbackDays, p.MinPatternSize, p.SimilarityThreshold)
	go r.run(t.ID, p)
	return t.ID, nil
}

// Status returns a snapshot of the task. The read is side-effect-free
// and idempotent: once terminal, repeated calls return the same payload.
func (r *Runner) Status(id string) (*Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	cp := *t
	if t.Result != nil {
		res := *t.Result
		cp.Result = &res
	}
	return &cp, nil
}

func (r *Runner) run(id string, p Params) {
	// The job outlives the triggering request, so it gets its own
	// context rather than the request's.
	ctx := context.Background()

	r.setStatus(id, TaskRunning)

	res, err := detect(ctx, r.source, r.patterns, p)
	if err != nil {
		log.Printf("analysis: task=%s failed: %v", id, err)
		r.finish(id, nil, err)
		return
	}

	log.Printf("analysis: task=%s succeeded discovered=%d new=%d updated=%d",
		id, res.PatternsDiscovered, res.PatternsNew, res.PatternsUpdated)
	r.finish(id, res, nil)

	if r.pub != nil {
		r.pub.Publish(bus.Event{Type: bus.EventAnalysisCompleted, TaskID: id})
	}
}

func (r *Runner) setStatus(id string, status TaskStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tasks[id]; ok && !t.Status.Terminal() {
		t.Status = status
	}
}

// finish moves the task to its terminal state. A task becomes terminal
// exactly once; later calls are ignored.
func (r *Runner) finish(id string, res *Result, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok || t.Status.Terminal() {
		return
	}
	now := time.Now().Truncate(time.Microsecond)
	t.FinishedAt = &now
	if err != nil {
		t.Status = TaskFailed
		t.Error = err.Error()
		return
	}
	t.Status = TaskSucceeded
	t.Result = res
}
