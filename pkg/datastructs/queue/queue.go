package queue

// Queue is a generic interface for unbounded FIFO queues.
type Queue[T any] interface {
	// Add appends items to the tail, in the order given.
	Add(items ...T)

	// Pop removes and returns the item at the head.
	// Returns (item, true) if successful, (zero, false) if the queue is empty.
	Pop() (T, bool)

	// Size returns the number of items held.
	Size() int

	// Empty reports whether Size is zero.
	Empty() bool
}
