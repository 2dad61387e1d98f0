// Package scheduler runs named tasks as goroutines and tracks them until
// they finish.
//
// Every task gets its own cancellable context and a handle that exposes
// its name, a cancellation capability and its terminal state. The
// scheduler can enumerate live tasks, wait for a set of them without
// surfacing their errors, and be stopped once:
//
//	s := scheduler.New(scheduler.WithLogger(log))
//	s.Go("stream-bybit", stream.Run)
//	s.Go("consumer-0", consumer.Run)
//	_ = s.Run(ctx) // blocks until Stop
//
// Cancellation is cooperative: Task.Cancel cancels the task's context and
// the task is expected to return at its next blocking point.
package scheduler
