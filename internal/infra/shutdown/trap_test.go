package shutdown

import (
	"context"
	"errors"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/yndnr/aggregator/internal/infra/scheduler"
)

type delivery struct {
	sig  os.Signal
	task string
}

func recordingHandle(ch chan<- delivery) HandleFunc {
	return func(ctx context.Context, sig os.Signal) {
		name := ""
		if t := scheduler.Current(ctx); t != nil {
			name = t.Name()
		}
		ch <- delivery{sig: sig, task: name}
	}
}

func TestDefaultSignals(t *testing.T) {
	want := []os.Signal{os.Interrupt, syscall.SIGTERM, syscall.SIGHUP}
	got := DefaultSignals()
	if len(got) != len(want) {
		t.Fatalf("DefaultSignals() = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("DefaultSignals()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestNewTrap_DedupSignals(t *testing.T) {
	trap := NewTrap(scheduler.New(), func(context.Context, os.Signal) {}, nil,
		syscall.SIGTERM, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	if got := trap.Signals(); len(got) != 2 {
		t.Errorf("Signals() = %v, want 2 unique signals", got)
	}
}

func TestTrap_DeliverRunsAsTask(t *testing.T) {
	ch := make(chan delivery, 1)
	trap := NewTrap(scheduler.New(), recordingHandle(ch), nil)

	if err := trap.Deliver(syscall.SIGTERM); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}

	select {
	case d := <-ch:
		if d.sig != syscall.SIGTERM {
			t.Errorf("signal = %v, want SIGTERM", d.sig)
		}
		if d.task != TaskName {
			t.Errorf("handler ran in task %q, want %q", d.task, TaskName)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("handler not invoked")
	}
}

func TestTrap_DeliverAfterStop(t *testing.T) {
	s := scheduler.New()
	s.Stop()
	ch := make(chan delivery, 1)
	trap := NewTrap(s, recordingHandle(ch), nil)

	if err := trap.Deliver(syscall.SIGTERM); !errors.Is(err, scheduler.ErrStopped) {
		t.Errorf("Deliver() error = %v, want ErrStopped", err)
	}
	select {
	case <-ch:
		t.Error("handler invoked after scheduler stopped")
	default:
	}
}

func TestTrap_InstallTwice(t *testing.T) {
	trap := NewTrap(scheduler.New(), func(context.Context, os.Signal) {}, nil, syscall.SIGHUP)
	defer trap.Close()

	if err := trap.Install(); err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	if err := trap.Install(); !errors.Is(err, ErrTrapInstalled) {
		t.Errorf("second Install() error = %v, want ErrTrapInstalled", err)
	}
}

func TestTrap_RealSignal(t *testing.T) {
	ch := make(chan delivery, 1)
	trap := NewTrap(scheduler.New(), recordingHandle(ch), nil, syscall.SIGHUP)
	if err := trap.Install(); err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	defer trap.Close()

	if err := syscall.Kill(os.Getpid(), syscall.SIGHUP); err != nil {
		t.Fatalf("Kill() error = %v", err)
	}

	select {
	case d := <-ch:
		if d.sig != syscall.SIGHUP {
			t.Errorf("signal = %v, want SIGHUP", d.sig)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("signal not delivered")
	}
}

func TestTrap_CloseIdempotent(t *testing.T) {
	trap := NewTrap(scheduler.New(), func(context.Context, os.Signal) {}, nil)
	trap.Close()
	trap.Close()
}
