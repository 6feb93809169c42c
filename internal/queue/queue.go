package queue

// QueueValidationInterface is the contract every benchmarked queue meets.
// The harness uses it as a type constraint; the driver also stores queues
// behind it so one registry can hand out every implementation.
type QueueValidationInterface[T any] interface {
	// TryPush adds an element if there is room and reports whether it did.
	// A full queue must be left untouched.
	TryPush(T) bool

	// Push adds an element and blocks while the queue is full.
	Push(T)

	// TryPop removes and returns the oldest element.
	// If the queue is empty it returns the zero T and false, otherwise true.
	TryPop() (T, bool)

	// Pop removes and returns the oldest element, blocking while the queue is empty.
	Pop() T

	// FreeSlots returns how many more elements can be enqueued before the queue is full.
	FreeSlots() uint64

	// UsedSlots returns how many elements are currently queued.
	UsedSlots() uint64
}
