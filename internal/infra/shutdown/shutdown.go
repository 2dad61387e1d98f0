package shutdown

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/yndnr/aggregator/internal/infra/scheduler"
	"github.com/yndnr/aggregator/internal/telemetry/metric"
)

// DefaultHookTimeout bounds the cleanup hooks run after the scheduler stops.
const DefaultHookTimeout = 30 * time.Second

// Hook is a cleanup function run after the scheduler stops.
type Hook func(ctx context.Context) error

// Handler owns the shutdown state of one process.
type Handler struct {
	sched    *scheduler.Scheduler
	spawner  Spawner
	latch    *Latch
	registry *Registry
	seq      *Sequence
	trap     *Trap

	timeout     time.Duration
	hookTimeout time.Duration
	prefix      string
	signals     []os.Signal
	logger      *slog.Logger
	metrics     *metric.Registry

	mu       sync.Mutex
	hooks    []Hook
	done     chan struct{}
	waitOnce sync.Once
	hookErr  error
}

// Option configures a Handler.
type Option func(*Handler)

// WithTimeout bounds the wait for cancelled tasks. Zero waits forever.
func WithTimeout(d time.Duration) Option {
	return func(h *Handler) {
		h.timeout = d
	}
}

// WithHookTimeout bounds the cleanup hooks.
func WithHookTimeout(d time.Duration) Option {
	return func(h *Handler) {
		h.hookTimeout = d
	}
}

// WithConsumerPrefix sets the task name prefix spared by the sequence.
func WithConsumerPrefix(prefix string) Option {
	return func(h *Handler) {
		h.prefix = prefix
	}
}

// WithSignals replaces the watched signals.
func WithSignals(signals ...os.Signal) Option {
	return func(h *Handler) {
		h.signals = signals
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithMetrics sets the metrics registry.
func WithMetrics(m *metric.Registry) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

// NewHandler creates a shutdown handler for sched.
func NewHandler(sched *scheduler.Scheduler, opts ...Option) *Handler {
	h := &Handler{
		sched:       sched,
		spawner:     sched,
		latch:       NewLatch(),
		hookTimeout: DefaultHookTimeout,
		prefix:      DefaultConsumerPrefix,
		logger:      slog.Default(),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}

	h.registry = NewRegistry(h.metrics)
	h.seq = NewSequence(h.latch, h.registry, sched, SequenceConfig{
		ConsumerPrefix: h.prefix,
		Timeout:        h.timeout,
		Logger:         h.logger,
		Metrics:        h.metrics,
	})
	h.trap = NewTrap(sched, h.handleSignal, h.logger, h.signals...)
	return h
}

func (h *Handler) handleSignal(ctx context.Context, sig os.Signal) {
	if _, err := h.seq.Run(ctx, sig); errors.Is(err, ErrAlreadyShuttingDown) {
		h.logger.Info("shutdown already in progress, ignoring signal", "signal", signalName(sig))
	}
}

// Latch returns the shutdown latch.
func (h *Handler) Latch() *Latch { return h.latch }

// Registry returns the background task registry.
func (h *Handler) Registry() *Registry { return h.registry }

// Trap returns the signal trap.
func (h *Handler) Trap() *Trap { return h.trap }

// ShuttingDown reports whether shutdown has begun.
func (h *Handler) ShuttingDown() bool { return h.latch.IsSet() }

// Background spawns a fire-and-forget task retained by the registry.
// Returns ErrShutdown once shutdown has begun. If shutdown begins while the
// task is being spawned, the task is cancelled and returned along with
// ErrShutdown so the caller can wait for it.
func (h *Handler) Background(name string, fn scheduler.TaskFunc) (*scheduler.Task, error) {
	if h.latch.IsSet() {
		return nil, ErrShutdown
	}
	t, err := h.registry.Go(h.spawner, name, fn)
	if err != nil {
		return nil, err
	}
	// The sequence may have listed live tasks before t existed.
	if h.latch.IsSet() {
		t.Cancel(ErrShutdown)
		return t, ErrShutdown
	}
	return t, nil
}

// Install binds the watched signals.
func (h *Handler) Install() error {
	return h.trap.Install()
}

// Close unbinds the watched signals.
func (h *Handler) Close() {
	h.trap.Close()
}

// Trigger starts shutdown as if sig had been delivered.
func (h *Handler) Trigger(sig os.Signal) error {
	return h.trap.Deliver(sig)
}

// OnShutdown registers a cleanup hook.
// Hooks are called in reverse order of registration.
func (h *Handler) OnShutdown(hook Hook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks = append(h.hooks, hook)
}

// Wait blocks until the scheduler stops, then runs the hooks and returns
// the last hook error. Hooks run once; later calls return the same error.
func (h *Handler) Wait(ctx context.Context) error {
	select {
	case <-h.sched.Stopped():
	case <-ctx.Done():
		return ctx.Err()
	}

	h.waitOnce.Do(func() {
		h.hookErr = h.runHooks(ctx)
		close(h.done)
	})
	return h.hookErr
}

func (h *Handler) runHooks(ctx context.Context) error {
	hookCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.hookTimeout)
	defer cancel()

	h.mu.Lock()
	hooks := make([]Hook, len(h.hooks))
	copy(hooks, h.hooks)
	h.mu.Unlock()

	var lastErr error
	for i := len(hooks) - 1; i >= 0; i-- {
		if err := hooks[i](hookCtx); err != nil {
			h.logger.Error("shutdown hook failed", "error", err)
			lastErr = err
		}
	}
	return lastErr
}

// Done returns a channel that closes when Wait has run all hooks.
func (h *Handler) Done() <-chan struct{} {
	return h.done
}

// SequenceDone returns a channel that closes when the shutdown sequence finishes.
func (h *Handler) SequenceDone() <-chan struct{} {
	return h.seq.Done()
}

// Result returns the outcome of the shutdown sequence, if it has run.
func (h *Handler) Result() (Result, bool) {
	return h.seq.Result()
}
