// Package shutdown coordinates graceful termination of the worker.
//
// The pieces are small and explicit:
//
//   - Latch: a monotonic "shutting down" flag polled by long-lived tasks
//   - Registry: holds fire-and-forget tasks until they finish
//   - Classify: splits live tasks into consumers and ordinary tasks
//   - Sequence: sets the latch, cancels ordinary tasks, waits, stops the scheduler
//   - Trap: binds SIGINT, SIGTERM and SIGHUP to the sequence
//
// Handler bundles them and is passed to every component that needs to
// observe shutdown or spawn background work:
//
//	h := shutdown.NewHandler(sched, shutdown.WithTimeout(30*time.Second))
//	if err := h.Install(); err != nil {
//		return err
//	}
//	defer h.Close()
//
//	h.OnShutdown(func(ctx context.Context) error {
//		return store.Close()
//	})
//	return h.Wait(ctx) // blocks until the scheduler stops
//
// Consumer tasks (name prefix "consumer") are never cancelled by the
// sequence. They are expected to watch the latch and return on their own.
package shutdown
