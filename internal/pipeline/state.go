package pipeline

import (
	"sort"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// State is a task lifecycle state.
type State int

const (
	Pending State = iota
	Running
	Retrying
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Retrying:
		return "retrying"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is allowed.
func (s State) Terminal() bool {
	return s == Succeeded || s == Failed
}

// CanTransition reports whether a task may move from one state to another.
// Pending → Running → (Succeeded | Failed | Retrying → Running).
func CanTransition(from, to State) bool {
	switch from {
	case Pending:
		return to == Running
	case Running:
		return to == Succeeded || to == Failed || to == Retrying
	case Retrying:
		return to == Running
	}
	return false
}

// TaskStatus is the reported status of one task in a flow run.
type TaskStatus struct {
	Task     string        `json:"task"`
	State    string        `json:"state"`
	Attempts int           `json:"attempts"`
	Rows     int           `json:"rows"`
	Elapsed  time.Duration `json:"elapsed"`
	Error    string        `json:"error,omitempty"`
}

type taskRecord struct {
	state    State
	attempts int
	rows     int
	started  time.Time
	elapsed  time.Duration
	err      error
}

// Tracker enforces the task state machine for one flow run. Safe for
// concurrent use.
type Tracker struct {
	mu    sync.Mutex
	order []string
	tasks map[string]*taskRecord
	// retryable names the tasks allowed to enter Retrying.
	retryable map[string]bool
}

// NewTracker registers tasks in Pending.
func NewTracker(tasks ...string) *Tracker {
	t := &Tracker{
		tasks:     make(map[string]*taskRecord, len(tasks)),
		retryable: make(map[string]bool),
	}
	for _, name := range tasks {
		t.order = append(t.order, name)
		t.tasks[name] = &taskRecord{state: Pending}
	}
	return t
}

// AllowRetry lets task enter Retrying.
func (t *Tracker) AllowRetry(task string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.retryable[task] = true
}

// Transition moves task to state, rejecting moves the state machine forbids.
func (t *Tracker) Transition(task string, to State) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.tasks[task]
	if !ok {
		return eris.Errorf("pipeline: unknown task %q", task)
	}
	if !CanTransition(rec.state, to) {
		return eris.Errorf("pipeline: task %s cannot move from %s to %s", task, rec.state, to)
	}
	if to == Retrying && !t.retryable[task] {
		return eris.Errorf("pipeline: task %s does not retry", task)
	}

	now := time.Now()
	switch to {
	case Running:
		rec.attempts++
		if rec.started.IsZero() {
			rec.started = now
		}
	case Succeeded, Failed:
		rec.elapsed = now.Sub(rec.started)
	}
	rec.state = to
	return nil
}

// Fail records err and moves task to Failed.
func (t *Tracker) Fail(task string, err error) error {
	if terr := t.Transition(task, Failed); terr != nil {
		return terr
	}
	t.mu.Lock()
	t.tasks[task].err = err
	t.mu.Unlock()
	return nil
}

// SetRows records the row count task observed.
func (t *Tracker) SetRows(task string, rows int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if rec, ok := t.tasks[task]; ok {
		rec.rows = rows
	}
}

// State returns the current state of task.
func (t *Tracker) State(task string) State {
	t.mu.Lock()
	defer t.mu.Unlock()
	if rec, ok := t.tasks[task]; ok {
		return rec.state
	}
	return Pending
}

// Attempts returns how many times task entered Running.
func (t *Tracker) Attempts(task string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if rec, ok := t.tasks[task]; ok {
		return rec.attempts
	}
	return 0
}

// Statuses returns a snapshot in registration order.
func (t *Tracker) Statuses() []TaskStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]TaskStatus, 0, len(t.order))
	for _, name := range t.order {
		rec := t.tasks[name]
		st := TaskStatus{
			Task:     name,
			State:    rec.state.String(),
			Attempts: rec.attempts,
			Rows:     rec.rows,
			Elapsed:  rec.elapsed,
		}
		if rec.err != nil {
			st.Error = rec.err.Error()
		}
		out = append(out, st)
	}
	return out
}

// Succeeded reports whether every registered task succeeded.
func (t *Tracker) Succeeded() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, rec := range t.tasks {
		if rec.state != Succeeded {
			return false
		}
	}
	return true
}

// Failed returns the names of failed tasks, sorted.
func (t *Tracker) Failed() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []string
	for name, rec := range t.tasks {
		if rec.state == Failed {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
