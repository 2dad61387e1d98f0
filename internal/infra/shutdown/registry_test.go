package shutdown

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/yndnr/aggregator/internal/infra/scheduler"
	"github.com/yndnr/aggregator/internal/telemetry/metric"
)

func TestRegistry_RemovesFinishedTasks(t *testing.T) {
	s := scheduler.New()
	r := NewRegistry(nil)

	release := make(chan struct{})
	task, err := r.Go(s, "checkpoint-1", func(context.Context) error {
		<-release
		return nil
	})
	if err != nil {
		t.Fatalf("Go() error = %v", err)
	}
	if r.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", r.Len())
	}

	close(release)
	<-task.Done()
	waitFor(t, time.Second, func() bool { return r.Len() == 0 })
}

func TestRegistry_ClearDoesNotCancel(t *testing.T) {
	s := scheduler.New()
	r := NewRegistry(nil)

	release := make(chan struct{})
	var tasks []*scheduler.Task
	for _, name := range []string{"checkpoint-1", "checkpoint-2"} {
		task, err := r.Go(s, name, func(ctx context.Context) error {
			select {
			case <-release:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err != nil {
			t.Fatalf("Go() error = %v", err)
		}
		tasks = append(tasks, task)
	}

	if n := r.Clear(); n != 2 {
		t.Errorf("Clear() = %d, want 2", n)
	}
	if r.Len() != 0 {
		t.Errorf("Len() after Clear = %d, want 0", r.Len())
	}
	for _, task := range tasks {
		if task.CancelRequested() {
			t.Errorf("task %s was cancelled by Clear", task.Name())
		}
	}

	close(release)
	for _, task := range tasks {
		<-task.Done()
		if task.State() != scheduler.StateCompleted {
			t.Errorf("task %s state = %v, want completed", task.Name(), task.State())
		}
	}
}

func TestRegistry_GoAfterStop(t *testing.T) {
	s := scheduler.New()
	s.Stop()
	r := NewRegistry(nil)
	if _, err := r.Go(s, "checkpoint-1", func(context.Context) error { return nil }); err == nil {
		t.Error("Go() on stopped scheduler should fail")
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0", r.Len())
	}
}

func TestRegistry_BackgroundGaugeTracksRetained(t *testing.T) {
	s := scheduler.New()
	m := metric.NewRegistry()
	r := NewRegistry(m)
	gauge := func() float64 { return testutil.ToFloat64(m.Background) }

	release := make(chan struct{})
	long, err := r.Go(s, "checkpoint-long", func(context.Context) error {
		<-release
		return nil
	})
	if err != nil {
		t.Fatalf("Go() error = %v", err)
	}
	for i := 0; i < 200; i++ {
		if _, err := r.Go(s, "checkpoint-short", func(context.Context) error { return nil }); err != nil {
			t.Fatalf("Go() error = %v", err)
		}
	}

	waitFor(t, 2*time.Second, func() bool { return r.Len() == 1 && gauge() == 1 })

	if n := r.Clear(); n != 1 {
		t.Errorf("Clear() = %d, want 1", n)
	}
	if g := gauge(); g != 0 {
		t.Errorf("gauge after Clear = %v, want 0", g)
	}

	close(release)
	<-long.Done()
	time.Sleep(20 * time.Millisecond)
	if g := gauge(); g != 0 {
		t.Errorf("gauge after cleared task finished = %v, want 0", g)
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}
