package buffered

// Queue is the channel baseline the lock-free queues are measured against.
type Queue[T any] struct {
	ch chan T
}

func New[T any](bufferSize uint64) *Queue[T] {
	// Enforce minimum capacity of 1 to ensure proper bounded buffer semantics.
	// A zero-capacity Go channel is an unbuffered synchronization primitive,
	// not a zero-capacity buffer, which would cause unexpected behavior.
	if bufferSize < 1 {
		bufferSize = 1
	}
	return &Queue[T]{
		ch: make(chan T, bufferSize),
	}
}

func (q *Queue[T]) TryPush(val T) bool {
	select {
	case q.ch <- val:
		return true
	default:
		return false
	}
}

func (q *Queue[T]) Push(val T) {
	q.ch <- val
}

func (q *Queue[T]) TryPop() (val T, ok bool) {
	select {
	case val = <-q.ch:
		return val, true
	default:
		return val, false
	}
}

func (q *Queue[T]) Pop() T {
	return <-q.ch
}

func (q *Queue[T]) FreeSlots() uint64 {
	return uint64(cap(q.ch) - len(q.ch))
}

func (q *Queue[T]) UsedSlots() uint64 {
	return uint64(len(q.ch))
}
