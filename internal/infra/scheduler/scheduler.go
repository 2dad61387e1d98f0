package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/aggregator/internal/telemetry/metric"
	"github.com/yndnr/aggregator/pkg/cmap"
)

// Common errors.
var (
	// ErrStopped is returned by Go after Stop has been called.
	ErrStopped = errors.New("scheduler: stopped")

	// ErrEmptyName is returned when a task is spawned without a name.
	ErrEmptyName = errors.New("scheduler: task name is required")

	// ErrTaskPanic wraps a panic recovered from a task function.
	ErrTaskPanic = errors.New("scheduler: task panicked")

	// ErrAbandoned is reported for tasks still running when Wait gave up.
	ErrAbandoned = errors.New("scheduler: task still running when wait ended")
)

// Scheduler owns a set of running tasks.
type Scheduler struct {
	tasks   *cmap.Map[*Task]
	logger  *slog.Logger
	metrics *metric.Registry

	mu        sync.Mutex // guards the stopped transition against Go
	stopped   chan struct{}
	isStopped bool
	stopCount atomic.Int32
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// WithMetrics sets the metrics registry.
func WithMetrics(m *metric.Registry) Option {
	return func(s *Scheduler) {
		s.metrics = m
	}
}

// New creates a scheduler.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		tasks:   cmap.New[*Task](),
		logger:  slog.Default(),
		stopped: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Go spawns fn as a named task.
func (s *Scheduler) Go(name string, fn TaskFunc) (*Task, error) {
	if name == "" {
		return nil, ErrEmptyName
	}

	s.mu.Lock()
	if s.isStopped {
		s.mu.Unlock()
		return nil, ErrStopped
	}
	t := newTask(context.Background(), ulid.Make().String(), name)
	s.tasks.Set(t.id, t)
	s.mu.Unlock()

	s.metrics.TaskStarted()
	s.logger.Debug("task started", "task", name, "task_id", t.id)

	go s.run(t, fn)
	return t, nil
}

func (s *Scheduler) run(t *Task, fn TaskFunc) {
	err := call(t.ctx, fn)

	// Finish before leaving the table so Tasks never misses a running task.
	state := t.finish(err)
	s.tasks.Delete(t.id)
	s.metrics.TaskFinished(state.String())

	if state == StateFailed {
		s.logger.Warn("task failed", "task", t.name, "task_id", t.id, "error", err)
		return
	}
	s.logger.Debug("task finished", "task", t.name, "task_id", t.id, "state", state.String())
}

func call(ctx context.Context, fn TaskFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTaskPanic, r)
		}
	}()
	return fn(ctx)
}

// Tasks returns a snapshot of live tasks ordered by start time. A task
// that has just finished may still appear, already terminal.
func (s *Scheduler) Tasks() []*Task {
	tasks := s.tasks.Values()
	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].started.Equal(tasks[j].started) {
			return tasks[i].id < tasks[j].id
		}
		return tasks[i].started.Before(tasks[j].started)
	})
	return tasks
}

// Lookup returns a live task by ID.
func (s *Scheduler) Lookup(id string) (*Task, bool) {
	return s.tasks.Get(id)
}

// Len returns the number of live tasks.
func (s *Scheduler) Len() int {
	return s.tasks.Count()
}

// Wait blocks until every task in tasks is terminal or ctx is done.
// Task errors are returned inside the results, never as a failure of Wait.
// Tasks still running when ctx ends are reported with ErrAbandoned.
func (s *Scheduler) Wait(ctx context.Context, tasks []*Task) []Result {
	results := make([]Result, len(tasks))
	for i, t := range tasks {
		select {
		case <-t.Done():
		case <-ctx.Done():
		}
		results[i] = t.result()
	}
	return results
}

// Stop halts the scheduler. No task can be spawned afterwards. Tasks that
// are still running are not touched. Only the first call has an effect.
func (s *Scheduler) Stop() {
	s.stopCount.Add(1)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isStopped {
		return
	}
	s.isStopped = true
	close(s.stopped)
	s.logger.Info("scheduler stopped", "live_tasks", s.tasks.Count())
}

// StopCount returns how many times Stop has been called.
func (s *Scheduler) StopCount() int {
	return int(s.stopCount.Load())
}

// Stopped returns a channel that is closed once Stop is called.
func (s *Scheduler) Stopped() <-chan struct{} {
	return s.stopped
}

// Run blocks until Stop is called or ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	select {
	case <-s.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
