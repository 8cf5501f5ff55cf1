package channel

// NewUnbounded creates an MPSC channel with no capacity limit. Send never
// blocks for space; backpressure is the caller's concern.
func NewUnbounded[T any]() (*Sender[T], *Receiver[T]) {
	q := newQueueState[T](0)
	return &Sender[T]{q: q}, &Receiver[T]{q: q}
}

// NewBounded creates an MPSC channel holding at most capacity values.
// Sends beyond capacity block, fail, suspend, or evict depending on the
// send variant used. Panics if capacity < 1.
func NewBounded[T any](capacity int) (*Sender[T], *Receiver[T]) {
	if capacity < 1 {
		panic("channel: bounded capacity must be at least 1")
	}
	q := newQueueState[T](capacity)
	return &Sender[T]{q: q}, &Receiver[T]{q: q}
}
