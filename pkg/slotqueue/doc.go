// Package slotqueue implements a bounded multi-producer/multi-consumer queue
// over a fixed ring of slots.
//
// Producers and consumers reserve logical positions on two monotonic
// cursors. Each slot carries a write turn and a read turn, so a position
// can only be written after the previous lap on that slot was read, and
// only read after it was written. TryPush and TryPop never block on a full
// or empty queue; Push and Pop spin until they can proceed.
//
// # Race Detection
//
// The value stored in a slot is a plain field. It is published by a
// release store on the slot's write turn and consumed after an acquire load
// of the same turn. Go's race detector only observes the standard
// synchronization primitives, not these orderings, so concurrent use of a
// Queue under -race reports data races on the slot values that cannot
// happen.
//
// RaceEnabled reports whether the package was built with -race. The
// package's concurrent tests skip themselves when it is true; the
// single-goroutine tests still run. Programs that embed a Queue and run
// their own tests with -race can gate on it the same way.
package slotqueue
