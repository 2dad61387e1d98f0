package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// State is the lifecycle state of a task.
type State int32

const (
	// StateRunning means the task function has not returned yet.
	StateRunning State = iota
	// StateCompleted means the task returned nil without being cancelled.
	StateCompleted
	// StateFailed means the task returned an error or panicked.
	StateFailed
	// StateCancelled means the task returned after cancellation was requested.
	StateCancelled
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// IsTerminal returns true if the task will not change state again.
func (s State) IsTerminal() bool {
	return s != StateRunning
}

// TaskFunc is the body of a task.
type TaskFunc func(ctx context.Context) error

// Task is a handle to one unit of concurrent work.
type Task struct {
	id      string
	name    string
	started time.Time

	ctx    context.Context
	cancel context.CancelCauseFunc

	cancelRequested atomic.Bool
	state           atomic.Int32
	done            chan struct{}
	err             error // set before done is closed
	finished        time.Time
}

type taskKey struct{}

func newTask(parent context.Context, id, name string) *Task {
	t := &Task{
		id:      id,
		name:    name,
		started: time.Now(),
		done:    make(chan struct{}),
	}
	ctx, cancel := context.WithCancelCause(parent)
	t.ctx = context.WithValue(ctx, taskKey{}, t)
	t.cancel = cancel
	return t
}

// Current returns the task whose context ctx was derived from, or nil.
func Current(ctx context.Context) *Task {
	t, _ := ctx.Value(taskKey{}).(*Task)
	return t
}

// ID returns the unique task identifier.
func (t *Task) ID() string { return t.id }

// Name returns the task name given at spawn time.
func (t *Task) Name() string { return t.name }

// StartedAt returns when the task was spawned.
func (t *Task) StartedAt() time.Time { return t.started }

// Done returns a channel that is closed when the task reaches a terminal state.
func (t *Task) Done() <-chan struct{} { return t.done }

// State returns the current state.
func (t *Task) State() State { return State(t.state.Load()) }

// CancelRequested reports whether Cancel has been called on a running task.
func (t *Task) CancelRequested() bool { return t.cancelRequested.Load() }

// Err returns the error the task finished with.
// Only valid after Done is closed.
func (t *Task) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Cancel requests cancellation of the task. The cause is available to the
// task through context.Cause. Returns true only for the call that actually
// delivered the request to a running task.
func (t *Task) Cancel(cause error) bool {
	select {
	case <-t.done:
		return false
	default:
	}
	if !t.cancelRequested.CompareAndSwap(false, true) {
		return false
	}
	t.cancel(cause)
	return true
}

// finish records the outcome and releases waiters.
func (t *Task) finish(err error) State {
	state := StateCompleted
	switch {
	case t.cancelRequested.Load() && isCancellation(t.ctx, err):
		state = StateCancelled
	case err != nil:
		state = StateFailed
	}

	t.err = err
	t.finished = time.Now()
	t.state.Store(int32(state))
	close(t.done)
	t.cancel(nil)
	return state
}

func isCancellation(ctx context.Context, err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	cause := context.Cause(ctx)
	return cause != nil && errors.Is(err, cause)
}

// Result is the outcome of waiting for one task.
type Result struct {
	ID       string
	Name     string
	State    State
	Err      error
	Duration time.Duration
}

// result snapshots the task outcome, reporting ErrAbandoned if it is
// still running.
func (t *Task) result() Result {
	r := Result{ID: t.id, Name: t.name}
	select {
	case <-t.done:
		r.State = t.State()
		r.Err = t.err
		r.Duration = t.finished.Sub(t.started)
	default:
		r.State = StateRunning
		r.Err = ErrAbandoned
		r.Duration = time.Since(t.started)
	}
	return r
}
