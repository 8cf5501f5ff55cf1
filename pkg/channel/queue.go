package channel

import (
	"sync"
	"time"

	"github.com/creachadair/msync"

	"github.com/go-drift/reactive/pkg/future"
)

// queueState is the shared FIFO behind one MPSC channel. Exactly one lock
// protects it; callbacks never run while it is held. Hand-off to the
// background executor happens by enqueueing a task, never by lock
// hand-off.
type queueState[T any] struct {
	mu        sync.Mutex
	items     []T
	capacity  int // 0 = unbounded
	senders   int
	receivers int

	// behavior is nil until a callback is registered on the receiver.
	behavior *consumerBehavior[T]

	// wakers belong to SendFutures suspended on a full queue; they fire
	// once per pop or disconnect.
	wakers []future.Waker

	// dataReady is signaled on empty->non-empty pushes and on sender
	// disconnect; spaceReady on pops and receiver disconnect.
	dataReady  *msync.Trigger
	spaceReady *msync.Trigger

	// notifyPending is true while executor-side dispatch for this queue is
	// scheduled or running. Pushes only schedule on the false->true
	// transition to avoid redundant wakeups.
	notifyPending bool
}

func newQueueState[T any](capacity int) *queueState[T] {
	return &queueState[T]{
		capacity:   capacity,
		senders:    1,
		receivers:  1,
		dataReady:  msync.NewTrigger(),
		spaceReady: msync.NewTrigger(),
	}
}

func (q *queueState[T]) hasSpaceLocked() bool {
	return q.capacity == 0 || len(q.items) < q.capacity
}

// senderDisconnectedLocked reports whether sends can no longer be
// consumed: every receiver closed and no live callback registration.
func (q *queueState[T]) senderDisconnectedLocked() bool {
	return q.receivers == 0 && (q.behavior == nil || !q.behavior.active)
}

// pushLocked appends v and returns whether the queue was empty plus the
// executor notification to run after unlocking, if any.
func (q *queueState[T]) pushLocked(v T) (wasEmpty bool, notify func()) {
	wasEmpty = len(q.items) == 0
	q.items = append(q.items, v)
	if !wasEmpty {
		return false, nil
	}
	if b := q.behavior; b != nil && b.active && !q.notifyPending {
		switch b.kind {
		case behaviorNonBlocking:
			q.notifyPending = true
			notify = q.scheduleNonBlocking
		case behaviorAsync:
			q.notifyPending = true
			notify = q.scheduleAsync
		}
	}
	return wasEmpty, notify
}

// afterPush runs the post-unlock effects of a push.
func (q *queueState[T]) afterPush(wasEmpty bool, notify func()) {
	if wasEmpty {
		q.dataReady.Signal()
	}
	if notify != nil {
		notify()
	}
}

// popLocked removes the head value and detaches any waiting send wakers.
func (q *queueState[T]) popLocked() (T, []future.Waker) {
	v := q.items[0]
	q.items = q.items[1:]
	wakers := q.wakers
	q.wakers = nil
	return v, wakers
}

// afterPop runs the post-unlock effects of a pop: blocked and suspended
// senders get another chance at the freed capacity.
func (q *queueState[T]) afterPop(wakers []future.Waker) {
	q.spaceReady.Signal()
	for _, wake := range wakers {
		wake()
	}
}

// send blocks until v is enqueued or the channel sender-disconnects.
func (q *queueState[T]) send(v T) error {
	q.mu.Lock()
	for {
		if q.senderDisconnectedLocked() {
			q.mu.Unlock()
			return ErrDisconnected
		}
		if q.hasSpaceLocked() {
			wasEmpty, notify := q.pushLocked(v)
			q.mu.Unlock()
			q.afterPush(wasEmpty, notify)
			return nil
		}
		ready := q.spaceReady.Ready()
		q.mu.Unlock()
		<-ready
		q.mu.Lock()
	}
}

func (q *queueState[T]) trySend(v T) error {
	q.mu.Lock()
	if q.senderDisconnectedLocked() {
		q.mu.Unlock()
		return ErrDisconnected
	}
	if !q.hasSpaceLocked() {
		q.mu.Unlock()
		return ErrFull
	}
	wasEmpty, notify := q.pushLocked(v)
	q.mu.Unlock()
	q.afterPush(wasEmpty, notify)
	return nil
}

// forceSend enqueues v unconditionally, evicting the oldest unread value
// when the queue is full. Eviction keeps occupancy constant, so no space
// is signaled and the empty->non-empty notification cannot apply.
func (q *queueState[T]) forceSend(v T) (evicted T, wasEvicted bool, err error) {
	q.mu.Lock()
	if q.senderDisconnectedLocked() {
		q.mu.Unlock()
		return evicted, false, ErrDisconnected
	}
	if q.hasSpaceLocked() {
		wasEmpty, notify := q.pushLocked(v)
		q.mu.Unlock()
		q.afterPush(wasEmpty, notify)
		return evicted, false, nil
	}
	evicted = q.items[0]
	q.items = q.items[1:]
	q.items = append(q.items, v)
	q.mu.Unlock()
	return evicted, true, nil
}

func (q *queueState[T]) tryReceive() (T, error) {
	var zero T
	q.mu.Lock()
	if len(q.items) > 0 {
		v, wakers := q.popLocked()
		q.mu.Unlock()
		q.afterPop(wakers)
		return v, nil
	}
	disconnected := q.senders == 0
	q.mu.Unlock()
	if disconnected {
		return zero, ErrDisconnected
	}
	return zero, ErrEmpty
}

// receive blocks until a value arrives, the channel
// receiver-disconnects, or the optional timeout elapses. Queued values
// always drain before disconnection is reported.
func (q *queueState[T]) receive(timeout time.Duration, hasTimeout bool) (T, error) {
	var zero T
	var timeoutC <-chan time.Time
	if hasTimeout {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutC = timer.C
	}

	q.mu.Lock()
	for {
		if len(q.items) > 0 {
			v, wakers := q.popLocked()
			q.mu.Unlock()
			q.afterPop(wakers)
			return v, nil
		}
		if q.senders == 0 {
			q.mu.Unlock()
			return zero, ErrDisconnected
		}
		ready := q.dataReady.Ready()
		q.mu.Unlock()
		select {
		case <-ready:
		case <-timeoutC:
			return zero, ErrEmpty
		}
		q.mu.Lock()
	}
}

// workerReceive is the pull loop for a dedicated blocking-callback
// worker. It additionally terminates when the registration is dropped.
func (q *queueState[T]) workerReceive() (T, error) {
	var zero T
	q.mu.Lock()
	for {
		if q.behavior == nil || !q.behavior.active {
			q.mu.Unlock()
			return zero, ErrDisconnected
		}
		if len(q.items) > 0 {
			v, wakers := q.popLocked()
			q.mu.Unlock()
			q.afterPop(wakers)
			return v, nil
		}
		if q.senders == 0 {
			q.mu.Unlock()
			return zero, ErrDisconnected
		}
		ready := q.dataReady.Ready()
		q.mu.Unlock()
		<-ready
		q.mu.Lock()
	}
}

// addSender registers one more producer handle.
func (q *queueState[T]) addSender() {
	q.mu.Lock()
	q.senders++
	q.mu.Unlock()
}

// dropSender releases one producer handle. The last one wakes the
// consumer side so it can observe disconnection after draining.
func (q *queueState[T]) dropSender() {
	q.mu.Lock()
	q.senders--
	last := q.senders == 0
	q.mu.Unlock()
	if last {
		q.dataReady.Signal()
	}
}

// dropReceiver releases the consumer handle. Without a callback
// registration the channel becomes sender-disconnected and blocked or
// suspended senders are woken to fail.
func (q *queueState[T]) dropReceiver() {
	q.mu.Lock()
	q.receivers--
	disconnected := q.senderDisconnectedLocked()
	wakers := q.wakers
	if disconnected {
		q.wakers = nil
	}
	q.mu.Unlock()
	if disconnected {
		q.spaceReady.Signal()
		for _, wake := range wakers {
			wake()
		}
	}
}

// deactivateBehavior ends callback consumption, either because the
// callback disconnected itself or its handle was dropped. Everyone
// blocked on the queue is woken to observe the new state.
func (q *queueState[T]) deactivateBehavior(state handleState) {
	q.mu.Lock()
	if q.behavior != nil {
		q.behavior.active = false
		q.behavior.state = state
	}
	q.notifyPending = false
	wakers := q.wakers
	q.wakers = nil
	q.mu.Unlock()
	q.spaceReady.Signal()
	q.dataReady.Signal()
	for _, wake := range wakers {
		wake()
	}
}
