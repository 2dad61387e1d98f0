package shutdown

import "sync/atomic"

// Latch is a set-once flag. It is never reset.
type Latch struct {
	set  atomic.Bool
	done chan struct{}
}

// NewLatch creates an unset latch.
func NewLatch() *Latch {
	return &Latch{done: make(chan struct{})}
}

// Set sets the latch. Returns true only for the call that flipped it.
func (l *Latch) Set() bool {
	if !l.set.CompareAndSwap(false, true) {
		return false
	}
	close(l.done)
	return true
}

// IsSet reports whether the latch has been set.
func (l *Latch) IsSet() bool {
	return l.set.Load()
}

// Done returns a channel that is closed once the latch is set.
func (l *Latch) Done() <-chan struct{} {
	return l.done
}
