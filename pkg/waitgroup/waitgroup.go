// Package waitgroup coordinates admission, drain and terminal shutdown of a
// worker set through a single atomic word.
//
// The word packs a phase and an outstanding-work count:
//
//	Active(n)    accepting; n units admitted and not yet claimed
//	Draining(n)  blocked; n admitted units still to be claimed
//	Terminal     blocked and fully drained, irreversible
//
// Every transition is one compare-and-swap on that word. Idle workers park
// in WaitAndDec instead of spinning.
package waitgroup

import (
	"context"
	"fmt"
	"sync/atomic"
)

// Phase is the lifecycle stage encoded in the top bits of the state word.
type Phase uint64

const (
	Active Phase = iota
	Draining
	Terminal
)

func (p Phase) String() string {
	switch p {
	case Active:
		return "active"
	case Draining:
		return "draining"
	case Terminal:
		return "terminal"
	default:
		return fmt.Sprintf("phase(%d)", uint64(p))
	}
}

const (
	phaseShift = 62
	countMask  = 1<<phaseShift - 1

	// terminalWord is the sentinel: Terminal with a zero count.
	terminalWord = uint64(Terminal) << phaseShift
)

func pack(p Phase, n uint64) uint64 { return uint64(p)<<phaseShift | n&countMask }

func unpack(w uint64) (Phase, uint64) { return Phase(w >> phaseShift), w & countMask }

// WaitGroup is an admission/drain counter. The zero value is not usable;
// create one with New.
//
// The state word uses sequentially consistent atomics: parking relies on a
// store-then-load handshake between the state and the waiter count.
type WaitGroup struct {
	state atomic.Uint64
	park  parker
}

// New returns an Active WaitGroup holding initial outstanding units.
func New(initial int64) *WaitGroup {
	if initial < 0 || uint64(initial) > countMask {
		panic("waitgroup: initial count out of range")
	}
	wg := &WaitGroup{}
	wg.state.Store(pack(Active, uint64(initial)))
	wg.park.init()
	return wg
}

// Inc admits one unit of work. It fails once the group is blocked.
// The 0→1 transition wakes parked waiters.
func (wg *WaitGroup) Inc() bool {
	for {
		w := wg.state.Load()
		phase, n := unpack(w)
		if phase != Active {
			return false
		}
		if n == countMask {
			panic("waitgroup: counter overflow")
		}
		if wg.state.CompareAndSwap(w, w+1) {
			if n == 0 {
				wg.park.wake()
			}
			return true
		}
	}
}

// Dec claims one unit of work. It fails when the count is zero or the group
// is terminal. Claiming the last unit while draining makes the group
// terminal and wakes every waiter.
func (wg *WaitGroup) Dec() bool {
	for {
		w := wg.state.Load()
		ok, done := wg.tryDec(w)
		if done {
			return ok
		}
	}
}

// tryDec attempts one Dec step from the observed word w. done is false when
// the CAS lost a race and the caller should reload.
func (wg *WaitGroup) tryDec(w uint64) (ok, done bool) {
	phase, n := unpack(w)
	if phase == Terminal || n == 0 {
		return false, true
	}
	next := w - 1
	if phase == Draining && n == 1 {
		next = terminalWord
	}
	if !wg.state.CompareAndSwap(w, next) {
		return false, false
	}
	if next == terminalWord {
		wg.park.wake()
	}
	return true, true
}

// WaitAndDec is the worker primitive. It parks while the group is active and
// idle, returns false once the group is terminal, and otherwise claims one
// unit and returns true.
func (wg *WaitGroup) WaitAndDec() bool {
	for {
		w := wg.state.Load()
		phase, n := unpack(w)
		switch {
		case phase == Terminal:
			return false
		case n == 0:
			wg.park.wait(context.Background(), func() bool {
				return wg.state.Load() != w
			})
		default:
			if ok, _ := wg.tryDec(w); ok {
				return true
			}
		}
	}
}

// Block stops admission. An idle group becomes terminal at once; otherwise
// the outstanding count now drains toward the terminal state.
func (wg *WaitGroup) Block() {
	for {
		w := wg.state.Load()
		phase, n := unpack(w)
		if phase != Active {
			return
		}
		next := pack(Draining, n)
		if n == 0 {
			next = terminalWord
		}
		if wg.state.CompareAndSwap(w, next) {
			if next == terminalWord {
				wg.park.wake()
			}
			return
		}
	}
}

// BlockAndWait blocks admission and parks until every admitted unit has been
// claimed.
func (wg *WaitGroup) BlockAndWait() {
	wg.Block()
	_ = wg.Wait(context.Background())
}

// Wait parks until the group is terminal or ctx is done.
func (wg *WaitGroup) Wait(ctx context.Context) error {
	for !wg.Finished() {
		if !wg.park.wait(ctx, wg.Finished) {
			return fmt.Errorf("waitgroup: wait interrupted in %s phase: %w", wg.Phase(), ctx.Err())
		}
	}
	return nil
}

// Blocked reports whether admission has been stopped.
func (wg *WaitGroup) Blocked() bool {
	phase, _ := unpack(wg.state.Load())
	return phase != Active
}

// Finished reports whether the group reached the terminal state.
func (wg *WaitGroup) Finished() bool {
	return wg.state.Load() == terminalWord
}

// Phase returns the current phase.
func (wg *WaitGroup) Phase() Phase {
	phase, _ := unpack(wg.state.Load())
	return phase
}

// Count returns the outstanding units in the current phase.
func (wg *WaitGroup) Count() int64 {
	_, n := unpack(wg.state.Load())
	return int64(n)
}
