package slotqueue

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
	"golang.org/x/sys/cpu"
)

// cell is one physical slot of the ring.
//
// writeTurn and readTurn count completed laps: a producer holding lap L may
// write once readTurn == L (lap L-1 was consumed), a consumer holding lap L
// may read once writeTurn == L+1 (lap L was published).
type cell[T any] struct {
	writeTurn atomix.Uint64
	readTurn  atomix.Uint64
	value     T
}

// put moves v into the cell and publishes it for lap.
func (c *cell[T]) put(v T, lap uint64) {
	c.value = v
	c.writeTurn.StoreRelease(lap + 1)
}

// take moves the value out of the cell, leaving it empty, and frees the
// cell for the next lap.
func (c *cell[T]) take(lap uint64) T {
	v := c.value
	var zero T
	c.value = zero
	c.readTurn.StoreRelease(lap + 1)
	return v
}

// Queue is a bounded, lock-free, multi-producer/multi-consumer queue.
//
// Positions are reserved with a CAS on a monotonic cursor and mapped onto
// the backing array by modulo capacity. Per-cell turn counters keep a
// goroutine that reserved a position but stalled from being overtaken by a
// later lap on the same cell.
//
// Ordering is FIFO per cell and lap. Racing producers are ordered by who
// wins the cursor CAS, not by call time.
type Queue[T any] struct {
	_        cpu.CacheLinePad
	pushIdx  atomix.Uint64 // next logical position to write
	_        cpu.CacheLinePad
	popIdx   atomix.Uint64 // next logical position to read
	_        cpu.CacheLinePad
	cells    []cell[T]
	capacity uint64
}

// New creates a Queue holding at most capacity elements.
// Any capacity > 0 is accepted; it is not rounded.
func New[T any](capacity uint64) *Queue[T] {
	if capacity == 0 {
		panic("slotqueue: capacity must be > 0")
	}
	return &Queue[T]{
		cells:    make([]cell[T], capacity),
		capacity: capacity,
	}
}

// Cap returns the fixed capacity.
func (q *Queue[T]) Cap() uint64 {
	return q.capacity
}

// TryPush inserts v if the queue is not full.
// A full queue returns false without touching any state.
func (q *Queue[T]) TryPush(v T) bool {
	sw := spin.Wait{}
	for {
		// pop before push: the distance can only be overestimated.
		pop := q.popIdx.LoadAcquire()
		push := q.pushIdx.LoadAcquire()
		if push-pop >= q.capacity {
			return false
		}
		if q.pushIdx.CompareAndSwapAcqRel(push, push+1) {
			q.write(push, v)
			return true
		}
		sw.Once()
	}
}

// Push inserts v, spinning while the queue is full.
//
// Push never fails. If the consumer holding the previous lap of the target
// cell stalls, Push spins until it resumes.
func (q *Queue[T]) Push(v T) {
	sw := spin.Wait{}
	for {
		pop := q.popIdx.LoadAcquire()
		push := q.pushIdx.LoadAcquire()
		if push-pop < q.capacity && q.pushIdx.CompareAndSwapAcqRel(push, push+1) {
			q.write(push, v)
			return
		}
		sw.Once()
	}
}

// TryPop removes the oldest reserved element.
// An empty queue returns the zero value and false without touching any state.
func (q *Queue[T]) TryPop() (T, bool) {
	sw := spin.Wait{}
	for {
		pop := q.popIdx.LoadAcquire()
		push := q.pushIdx.LoadAcquire()
		if pop == push {
			var zero T
			return zero, false
		}
		if q.popIdx.CompareAndSwapAcqRel(pop, pop+1) {
			return q.read(pop), true
		}
		sw.Once()
	}
}

// Pop removes the oldest reserved element, spinning while the queue is empty.
func (q *Queue[T]) Pop() T {
	sw := spin.Wait{}
	for {
		pop := q.popIdx.LoadAcquire()
		push := q.pushIdx.LoadAcquire()
		if pop != push && q.popIdx.CompareAndSwapAcqRel(pop, pop+1) {
			return q.read(pop)
		}
		sw.Once()
	}
}

// write waits for the turn of the lap owning pos and publishes v.
func (q *Queue[T]) write(pos uint64, v T) {
	c := &q.cells[pos%q.capacity]
	lap := pos / q.capacity
	sw := spin.Wait{}
	for c.readTurn.LoadAcquire() != lap {
		sw.Once()
	}
	c.put(v, lap)
}

// read waits until the lap owning pos has been published and moves it out.
func (q *Queue[T]) read(pos uint64) T {
	c := &q.cells[pos%q.capacity]
	lap := pos / q.capacity
	sw := spin.Wait{}
	for c.writeTurn.LoadAcquire() != lap+1 {
		sw.Once()
	}
	return c.take(lap)
}

// UsedSlots returns the number of reserved but not yet claimed positions.
// The value is approximate while other goroutines are active.
func (q *Queue[T]) UsedSlots() uint64 {
	pop := q.popIdx.LoadAcquire()
	push := q.pushIdx.LoadAcquire()
	return push - pop
}

// FreeSlots returns how many more elements fit before the queue is full.
func (q *Queue[T]) FreeSlots() uint64 {
	used := q.UsedSlots()
	if used >= q.capacity {
		return 0
	}
	return q.capacity - used
}
