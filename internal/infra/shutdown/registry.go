package shutdown

import (
	"github.com/yndnr/aggregator/internal/infra/scheduler"
	"github.com/yndnr/aggregator/internal/telemetry/metric"
	"github.com/yndnr/aggregator/pkg/cmap"
)

// Spawner starts named tasks.
type Spawner interface {
	Go(name string, fn scheduler.TaskFunc) (*scheduler.Task, error)
}

// Registry keeps references to fire-and-forget tasks until they finish.
// It never cancels anything.
type Registry struct {
	tasks   *cmap.Map[*scheduler.Task]
	metrics *metric.Registry
}

// NewRegistry creates an empty registry.
func NewRegistry(m *metric.Registry) *Registry {
	return &Registry{
		tasks:   cmap.New[*scheduler.Task](),
		metrics: m,
	}
}

// Add retains t until it reaches a terminal state or Clear is called.
func (r *Registry) Add(t *scheduler.Task) {
	r.tasks.Set(t.ID(), t)
	r.metrics.AddBackground(1)

	go func() {
		<-t.Done()
		// Clear may have dropped it already.
		if _, ok := r.tasks.Pop(t.ID()); ok {
			r.metrics.AddBackground(-1)
		}
	}()
}

// Go spawns fn on s and adds the resulting task.
func (r *Registry) Go(s Spawner, name string, fn scheduler.TaskFunc) (*scheduler.Task, error) {
	t, err := s.Go(name, fn)
	if err != nil {
		return nil, err
	}
	r.Add(t)
	return t, nil
}

// Len returns the number of retained tasks.
func (r *Registry) Len() int {
	return r.tasks.Count()
}

// Tasks returns the retained tasks.
func (r *Registry) Tasks() []*scheduler.Task {
	return r.tasks.Values()
}

// Clear drops every reference and returns how many were dropped.
// Running tasks keep running under their scheduler.
func (r *Registry) Clear() int {
	n := r.tasks.Clear()
	r.metrics.AddBackground(-n)
	return n
}
