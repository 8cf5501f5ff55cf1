package channel

import (
	"sync/atomic"
	"time"

	"github.com/go-drift/reactive/pkg/future"
)

// Receiver is the single consumer handle onto an MPSC channel. Values are
// pulled manually, or exactly one callback is registered via the
// OnReceive variants, which spends the receiver: after registration the
// manual methods report disconnection.
type Receiver[T any] struct {
	q        *queueState[T]
	closed   atomic.Bool
	consumed atomic.Bool
}

// Receive blocks until a value is available and returns it. After all
// senders close, queued values drain first, then ErrDisconnected.
func (r *Receiver[T]) Receive() (T, error) {
	if r.spent() {
		var zero T
		return zero, ErrDisconnected
	}
	return r.q.receive(0, false)
}

// TryReceive returns the next value without blocking, or ErrEmpty /
// ErrDisconnected.
func (r *Receiver[T]) TryReceive() (T, error) {
	if r.spent() {
		var zero T
		return zero, ErrDisconnected
	}
	return r.q.tryReceive()
}

// ReceiveTimeout is Receive bounded by a timeout; it returns ErrEmpty
// when the timeout elapses first.
func (r *Receiver[T]) ReceiveTimeout(timeout time.Duration) (T, error) {
	if r.spent() {
		var zero T
		return zero, ErrDisconnected
	}
	return r.q.receive(timeout, true)
}

// Drain returns every immediately available value, oldest first.
func (r *Receiver[T]) Drain() []T {
	var out []T
	for {
		v, err := r.TryReceive()
		if err != nil {
			return out
		}
		out = append(out, v)
	}
}

// Close releases the consumer handle; blocked senders fail with
// ErrDisconnected. Idempotent, and a no-op after a callback registration
// took over consumption.
func (r *Receiver[T]) Close() {
	if r.consumed.Load() {
		return
	}
	if r.closed.CompareAndSwap(false, true) {
		r.q.dropReceiver()
	}
}

// OnReceive registers a blocking callback, lazily spawning a dedicated
// worker goroutine that pulls values in order and may block arbitrarily
// long without affecting the shared executor. The worker exits when the
// channel disconnects or the callback returns ErrCallbackDisconnected.
func (r *Receiver[T]) OnReceive(fn func(T) error) *CallbackHandle {
	q := r.q
	r.install(&consumerBehavior[T]{kind: behaviorBlocking, active: true, state: handleHeld})
	go func() {
		for {
			v, err := q.workerReceive()
			if err != nil {
				return
			}
			cbErr := runCallback(fn, v)
			if isDisconnect(cbErr) {
				q.deactivateBehavior(q.behaviorState())
				return
			}
			reportCallbackError("channel.onReceive", cbErr)
		}
	}()
	return newHandle(func() { q.deactivateBehavior(handleDropped) })
}

// OnReceiveNonBlocking registers a callback run by the shared background
// executor. The callback must not block; it shares one goroutine with
// every other non-blocking callback in the process.
func (r *Receiver[T]) OnReceiveNonBlocking(fn func(T) error) *CallbackHandle {
	q := r.q
	r.install(&consumerBehavior[T]{
		kind:        behaviorNonBlocking,
		nonBlocking: fn,
		active:      true,
		state:       handleHeld,
	})
	return newHandle(func() { q.deactivateBehavior(handleDropped) })
}

// OnReceiveAsync registers a future-returning callback. The executor
// polls each returned future to completion before handing the callback
// the next value, so deliveries stay ordered even when processing
// suspends.
func (r *Receiver[T]) OnReceiveAsync(fn func(T) future.ErrorFuture) *CallbackHandle {
	q := r.q
	r.install(&consumerBehavior[T]{
		kind:   behaviorAsync,
		async:  fn,
		active: true,
		state:  handleHeld,
	})
	return newHandle(func() { q.deactivateBehavior(handleDropped) })
}

// install converts the receiver into callback consumption and kicks off
// dispatch for anything already queued.
func (r *Receiver[T]) install(b *consumerBehavior[T]) {
	if r.closed.Load() {
		panic("channel: callback registered on a closed receiver")
	}
	if !r.consumed.CompareAndSwap(false, true) {
		panic("channel: receiver already has a registered callback")
	}
	q := r.q
	q.mu.Lock()
	q.receivers--
	q.behavior = b
	var notify func()
	if len(q.items) > 0 && !q.notifyPending {
		switch b.kind {
		case behaviorNonBlocking:
			q.notifyPending = true
			notify = q.scheduleNonBlocking
		case behaviorAsync:
			q.notifyPending = true
			notify = q.scheduleAsync
		}
	}
	q.mu.Unlock()
	if notify != nil {
		notify()
	}
	// The blocking worker pulls directly; wake it in case values are
	// already queued.
	if b.kind == behaviorBlocking {
		q.dataReady.Signal()
	}
}

func (r *Receiver[T]) spent() bool {
	return r.closed.Load() || r.consumed.Load()
}
