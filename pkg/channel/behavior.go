package channel

import (
	"github.com/go-drift/reactive/pkg/executor"
	"github.com/go-drift/reactive/pkg/future"
)

// behaviorKind is the tagged variant describing how a channel delivers
// values to its consumer. Broadcast channels hold one kind per
// subscriber instead.
type behaviorKind int

const (
	behaviorNone        behaviorKind = iota // manual pull
	behaviorBlocking                        // dedicated worker goroutine
	behaviorNonBlocking                     // shared executor, direct call
	behaviorAsync                           // shared executor, polled future
)

// consumerBehavior is the single registered consumer of an MPSC channel.
type consumerBehavior[T any] struct {
	kind        behaviorKind
	nonBlocking func(T) error
	async       func(T) future.ErrorFuture
	active      bool
	state       handleState
}

// scheduleNonBlocking queues one drain pass on the shared executor.
func (q *queueState[T]) scheduleNonBlocking() {
	executor.Shared().Enqueue(q.drainNonBlocking)
}

// scheduleAsync spawns one dispatch future on the shared executor.
func (q *queueState[T]) scheduleAsync() {
	executor.Shared().Spawn(&asyncDispatch[T]{q: q})
}

// drainNonBlocking runs on the executor goroutine and delivers every
// currently queued value to the non-blocking callback before yielding. A
// disconnecting callback stops processing permanently; remaining values
// are abandoned with the registration.
func (q *queueState[T]) drainNonBlocking() {
	for {
		q.mu.Lock()
		b := q.behavior
		if b == nil || !b.active || b.kind != behaviorNonBlocking || len(q.items) == 0 {
			q.notifyPending = false
			q.mu.Unlock()
			return
		}
		v, wakers := q.popLocked()
		fn := b.nonBlocking
		q.mu.Unlock()
		q.afterPop(wakers)

		err := runCallback(fn, v)
		if isDisconnect(err) {
			q.deactivateBehavior(q.behaviorState())
			return
		}
		reportCallbackError("channel.onReceiveNonBlocking", err)
	}
}

// behaviorState snapshots the registration's lifecycle flag.
func (q *queueState[T]) behaviorState() handleState {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.behavior == nil {
		return handleNone
	}
	return q.behavior.state
}

// asyncDispatch drives one async consumer: pop a value, start the
// callback's future, poll it to completion, then take the next value.
// The queue's notifyPending flag stays set for the dispatch's lifetime so
// pushes never spawn a second dispatcher.
type asyncDispatch[T any] struct {
	q        *queueState[T]
	inflight future.ErrorFuture
}

func (d *asyncDispatch[T]) Poll(cx *future.Context) future.Poll {
	q := d.q
	for {
		if d.inflight != nil {
			if d.inflight.Poll(cx) == future.Pending {
				return future.Pending
			}
			err := d.inflight.Err()
			d.inflight = nil
			if isDisconnect(err) {
				q.deactivateBehavior(q.behaviorState())
				return future.Ready
			}
			reportCallbackError("channel.onReceiveAsync", err)
		}

		q.mu.Lock()
		b := q.behavior
		if b == nil || !b.active || b.kind != behaviorAsync || len(q.items) == 0 {
			q.notifyPending = false
			q.mu.Unlock()
			return future.Ready
		}
		v, wakers := q.popLocked()
		fn := b.async
		q.mu.Unlock()
		q.afterPop(wakers)

		f := startAsyncCallback(fn, v)
		if f == nil {
			q.deactivateBehavior(q.behaviorState())
			return future.Ready
		}
		d.inflight = f
	}
}
