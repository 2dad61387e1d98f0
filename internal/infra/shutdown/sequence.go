package shutdown

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yndnr/aggregator/internal/infra/scheduler"
	"github.com/yndnr/aggregator/internal/telemetry/metric"
)

// Common errors.
var (
	// ErrShutdown is the root cause passed to tasks cancelled by the sequence.
	ErrShutdown = errors.New("shutdown: process is shutting down")

	// ErrAlreadyShuttingDown is returned by every Run after the first.
	ErrAlreadyShuttingDown = errors.New("shutdown: already in progress")
)

// SignalError is the cancellation cause seen by cancelled tasks.
type SignalError struct {
	Signal os.Signal
}

func (e *SignalError) Error() string {
	return "shutdown: received " + signalName(e.Signal)
}

func (e *SignalError) Unwrap() error {
	return ErrShutdown
}

// Scheduler is what the sequence needs from the task scheduler.
type Scheduler interface {
	Tasks() []*scheduler.Task
	Wait(ctx context.Context, tasks []*scheduler.Task) []scheduler.Result
	Stop()
}

// Result describes one completed shutdown sequence.
type Result struct {
	Signal    os.Signal
	Cancelled []scheduler.Result // ordinary tasks, in cancellation order
	Spared    []string           // consumer task names
	Abandoned []string           // still running when the deadline passed
	Failed    []string           // returned an error other than a cancellation
	Cleared   int                // background references dropped
	Duration  time.Duration
}

// SequenceConfig tunes a Sequence.
type SequenceConfig struct {
	// ConsumerPrefix marks tasks that are never cancelled.
	// Defaults to DefaultConsumerPrefix.
	ConsumerPrefix string

	// Timeout bounds the wait for cancelled tasks. Zero waits forever.
	Timeout time.Duration

	Logger  *slog.Logger
	Metrics *metric.Registry
}

// Sequence performs the shutdown steps at most once.
type Sequence struct {
	latch    *Latch
	registry *Registry
	sched    Scheduler
	cfg      SequenceConfig
	logger   *slog.Logger

	started atomic.Bool
	done    chan struct{}

	mu     sync.Mutex
	result *Result
}

// NewSequence creates a sequence over the given latch, registry and scheduler.
func NewSequence(latch *Latch, registry *Registry, sched Scheduler, cfg SequenceConfig) *Sequence {
	if cfg.ConsumerPrefix == "" {
		cfg.ConsumerPrefix = DefaultConsumerPrefix
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Sequence{
		latch:    latch,
		registry: registry,
		sched:    sched,
		cfg:      cfg,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Run executes the shutdown steps in order:
//
//  1. set the latch
//  2. clear the background registry
//  3. list live tasks, excluding the caller's own task
//  4. split them into consumers and ordinary tasks
//  5. cancel every ordinary task
//  6. wait for them, collecting their errors
//  7. stop the scheduler
//
// Task errors never fail Run. Calls after the first return
// ErrAlreadyShuttingDown and have no effect.
func (s *Sequence) Run(ctx context.Context, sig os.Signal) (Result, error) {
	if !s.started.CompareAndSwap(false, true) {
		return Result{}, ErrAlreadyShuttingDown
	}
	defer close(s.done)

	start := time.Now()
	res := Result{Signal: sig}
	s.logger.Info("shutdown initiated", "signal", signalName(sig), "timeout", s.cfg.Timeout)

	s.latch.Set()
	res.Cleared = s.registry.Clear()

	self := scheduler.Current(ctx)
	live := s.sched.Tasks()
	others := live[:0]
	for _, t := range live {
		if t != self {
			others = append(others, t)
		}
	}

	ordinary, consumers := Classify(others, s.cfg.ConsumerPrefix)
	for _, t := range consumers {
		res.Spared = append(res.Spared, t.Name())
	}

	cause := &SignalError{Signal: sig}
	for _, t := range ordinary {
		t.Cancel(cause)
	}
	s.logger.Info("cancelling tasks",
		"cancelled", len(ordinary),
		"spared", res.Spared,
		"cleared", res.Cleared,
	)

	waitCtx := ctx
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	res.Cancelled = s.sched.Wait(waitCtx, ordinary)
	for _, r := range res.Cancelled {
		switch {
		case errors.Is(r.Err, scheduler.ErrAbandoned):
			res.Abandoned = append(res.Abandoned, r.Name)
			s.logger.Warn("task did not terminate", "task", r.Name, "task_id", r.ID, "elapsed", r.Duration)
		case r.State == scheduler.StateFailed:
			res.Failed = append(res.Failed, r.Name)
			s.logger.Debug("task failed during shutdown", "task", r.Name, "error", r.Err)
		}
	}

	s.sched.Stop()

	res.Duration = time.Since(start)
	s.cfg.Metrics.ObserveShutdown(len(ordinary), len(consumers), len(res.Abandoned), res.Duration)
	s.logger.Info("shutdown sequence complete",
		"duration", res.Duration,
		"abandoned", len(res.Abandoned),
		"failed", len(res.Failed),
	)

	s.mu.Lock()
	s.result = &res
	s.mu.Unlock()
	return res, nil
}

// Started reports whether Run has been entered.
func (s *Sequence) Started() bool {
	return s.started.Load()
}

// Done returns a channel that is closed when the first Run returns.
func (s *Sequence) Done() <-chan struct{} {
	return s.done
}

// Result returns the outcome of the completed sequence.
func (s *Sequence) Result() (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return Result{}, false
	}
	return *s.result, true
}

func signalName(sig os.Signal) string {
	if sig == nil {
		return "none"
	}
	return sig.String()
}
