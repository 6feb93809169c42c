package waitgroup

import (
	"context"
	"sync/atomic"
)

// parker is a broadcast wait/notify point.
//
// Each generation is a channel; wake swaps in a fresh one and closes the
// old, releasing everyone parked on it. Waiters register before taking the
// generation and re-check their condition afterwards, so a state change
// made before wake observed the waiter is always seen by the re-check.
type parker struct {
	waiters atomic.Int64
	gen     atomic.Pointer[chan struct{}]
}

func (p *parker) init() {
	ch := make(chan struct{})
	p.gen.Store(&ch)
}

// wait parks until ready reports true, a wake happens, or ctx is done.
// It returns false only when ctx ended the wait. Callers re-check their
// condition after a true return; wakeups may be spurious.
func (p *parker) wait(ctx context.Context, ready func() bool) bool {
	p.waiters.Add(1)
	defer p.waiters.Add(-1)

	ch := *p.gen.Load()
	if ready() {
		return true
	}
	select {
	case <-ch:
		return true
	case <-ctx.Done():
		return false
	}
}

// wake releases every goroutine parked in the current generation.
// Without registered waiters it does nothing.
func (p *parker) wake() {
	if p.waiters.Load() == 0 {
		return
	}
	next := make(chan struct{})
	old := p.gen.Swap(&next)
	close(*old)
}
