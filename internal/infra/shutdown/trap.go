package shutdown

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/yndnr/aggregator/internal/infra/scheduler"
)

// TaskName is the name of the task spawned for each delivered signal.
const TaskName = "shutdown"

// ErrTrapInstalled is returned when Install is called twice.
var ErrTrapInstalled = errors.New("shutdown: trap already installed")

// HandleFunc runs on the scheduler when a signal arrives.
type HandleFunc func(ctx context.Context, sig os.Signal)

// DefaultSignals returns interrupt, terminate and hangup.
func DefaultSignals() []os.Signal {
	return []os.Signal{os.Interrupt, syscall.SIGTERM, syscall.SIGHUP}
}

// Trap routes OS signals to a handler running as a scheduler task.
type Trap struct {
	sched   Spawner
	handle  HandleFunc
	signals []os.Signal
	logger  *slog.Logger

	ch        chan os.Signal
	stop      chan struct{}
	installed atomic.Bool
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewTrap creates a trap for the given signals. Duplicates are bound once.
// With no signals, DefaultSignals is used.
func NewTrap(sched Spawner, handle HandleFunc, logger *slog.Logger, signals ...os.Signal) *Trap {
	if len(signals) == 0 {
		signals = DefaultSignals()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Trap{
		sched:   sched,
		handle:  handle,
		signals: uniqueSignals(signals),
		logger:  logger,
		ch:      make(chan os.Signal, 1),
		stop:    make(chan struct{}),
	}
}

// Signals returns the watched signals.
func (t *Trap) Signals() []os.Signal {
	out := make([]os.Signal, len(t.signals))
	copy(out, t.signals)
	return out
}

// Install starts listening. All signals share one channel and one entry point.
func (t *Trap) Install() error {
	if !t.installed.CompareAndSwap(false, true) {
		return ErrTrapInstalled
	}
	signal.Notify(t.ch, t.signals...)

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		for {
			select {
			case sig := <-t.ch:
				_ = t.Deliver(sig)
			case <-t.stop:
				return
			}
		}
	}()
	t.logger.Debug("signal trap installed", "signals", t.signals)
	return nil
}

// Deliver spawns the handler for sig as a scheduler task. It never runs
// the handler on the calling goroutine.
func (t *Trap) Deliver(sig os.Signal) error {
	_, err := t.sched.Go(TaskName, func(ctx context.Context) error {
		t.handle(ctx, sig)
		return nil
	})
	if errors.Is(err, scheduler.ErrStopped) {
		t.logger.Info("signal ignored, scheduler already stopped", "signal", signalName(sig))
	} else if err != nil {
		t.logger.Error("failed to dispatch signal", "signal", signalName(sig), "error", err)
	}
	return err
}

// Close stops signal delivery. Safe to call more than once.
func (t *Trap) Close() {
	t.closeOnce.Do(func() {
		if t.installed.Load() {
			signal.Stop(t.ch)
		}
		close(t.stop)
		t.wg.Wait()
	})
}

func uniqueSignals(signals []os.Signal) []os.Signal {
	seen := make(map[os.Signal]struct{}, len(signals))
	out := make([]os.Signal, 0, len(signals))
	for _, sig := range signals {
		if _, ok := seen[sig]; ok {
			continue
		}
		seen[sig] = struct{}{}
		out = append(out, sig)
	}
	return out
}
