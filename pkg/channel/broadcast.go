package channel

import (
	"sync"
	"sync/atomic"

	"github.com/go-drift/reactive/pkg/executor"
	"github.com/go-drift/reactive/pkg/future"
)

// subscriber is one registered consumer of a broadcast channel.
type subscriber[T any] struct {
	id          uint64
	kind        behaviorKind
	nonBlocking func(T) error
	async       func(T) future.ErrorFuture
	worker      *broadcastWorker[T]
	removed     bool // guarded by broadcastState.mu
}

// broadcastState is the shared FIFO and subscriber list behind one
// broadcast channel. Values fan out to every currently registered
// subscriber, in registration order, before the next queued value is
// taken.
type broadcastState[T any] struct {
	mu      sync.Mutex
	items   []T
	subs    []*subscriber[T]
	senders int

	// regOpen is true while the registration-capable BroadcastChannel
	// handle is alive. Once it is closed and the last subscriber is gone,
	// sends disconnect rather than silently dropping values.
	regOpen bool

	// dispatchActive is true while a dispatch future is queued on the
	// executor; sends only spawn one on the inactive->active transition.
	dispatchActive bool

	nextSubID uint64
}

// BroadcastChannel is the registration-capable handle onto a broadcast
// channel. It can both send and register subscribers. Values sent before
// any subscriber exists stay queued until the first registration.
type BroadcastChannel[T any] struct {
	st     *broadcastState[T]
	closed atomic.Bool
}

// NewBroadcast creates a broadcast channel with no subscribers.
func NewBroadcast[T any]() *BroadcastChannel[T] {
	return &BroadcastChannel[T]{st: &broadcastState[T]{senders: 1, regOpen: true}}
}

// Broadcaster returns a send-only handle. It stays valid after the
// BroadcastChannel itself is closed, which is how current subscribers are
// finalized while sending continues.
func (b *BroadcastChannel[T]) Broadcaster() *Broadcaster[T] {
	b.st.mu.Lock()
	b.st.senders++
	b.st.mu.Unlock()
	return &Broadcaster[T]{st: b.st}
}

// Send enqueues v for fan-out. The queue is unbounded, so the only
// failure is ErrDisconnected: registration closed and no subscriber
// remains.
func (b *BroadcastChannel[T]) Send(v T) error {
	if b.closed.Load() {
		return ErrDisconnected
	}
	return b.st.send(v)
}

// TrySend is Send; it exists for symmetry with MPSC senders and never
// reports ErrFull.
func (b *BroadcastChannel[T]) TrySend(v T) error {
	return b.Send(v)
}

// OnReceive registers a blocking subscriber with its own dedicated worker
// goroutine, spawned here. Fan-out waits for the worker to finish each
// value before the next queued value is taken, but the shared executor
// itself never blocks on it.
func (b *BroadcastChannel[T]) OnReceive(fn func(T) error) *CallbackHandle {
	sub := &subscriber[T]{kind: behaviorBlocking, worker: newBroadcastWorker(fn)}
	return b.register(sub)
}

// OnReceiveNonBlocking registers a subscriber invoked directly on the
// shared executor; it must not block.
func (b *BroadcastChannel[T]) OnReceiveNonBlocking(fn func(T) error) *CallbackHandle {
	sub := &subscriber[T]{kind: behaviorNonBlocking, nonBlocking: fn}
	return b.register(sub)
}

// OnReceiveAsync registers a future-returning subscriber. Each returned
// future is polled to completion before the fan-out advances past the
// subscriber.
func (b *BroadcastChannel[T]) OnReceiveAsync(fn func(T) future.ErrorFuture) *CallbackHandle {
	sub := &subscriber[T]{kind: behaviorAsync, async: fn}
	return b.register(sub)
}

func (b *BroadcastChannel[T]) register(sub *subscriber[T]) *CallbackHandle {
	if b.closed.Load() {
		panic("channel: broadcast registration after Close")
	}
	st := b.st
	st.mu.Lock()
	st.nextSubID++
	sub.id = st.nextSubID
	st.subs = append(st.subs, sub)
	spawn := len(st.items) > 0 && !st.dispatchActive
	if spawn {
		st.dispatchActive = true
	}
	st.mu.Unlock()
	if spawn {
		executor.Shared().Spawn(&broadcastDispatch[T]{st: st})
	}
	return newHandle(func() { st.removeSubscriber(sub) })
}

// SubscriberCount returns the number of currently registered subscribers.
func (b *BroadcastChannel[T]) SubscriberCount() int {
	b.st.mu.Lock()
	defer b.st.mu.Unlock()
	return len(b.st.subs)
}

// Close drops the registration side. Existing subscribers keep receiving;
// once the last one is removed and only Broadcasters remain, sends
// disconnect. Idempotent.
func (b *BroadcastChannel[T]) Close() {
	if !b.closed.CompareAndSwap(false, true) {
		return
	}
	st := b.st
	st.mu.Lock()
	st.regOpen = false
	st.mu.Unlock()
	st.dropSender()
}

// Broadcaster is a send-only handle onto a broadcast channel.
type Broadcaster[T any] struct {
	st     *broadcastState[T]
	closed atomic.Bool
}

// Send enqueues v for fan-out; see BroadcastChannel.Send.
func (b *Broadcaster[T]) Send(v T) error {
	if b.closed.Load() {
		return ErrDisconnected
	}
	return b.st.send(v)
}

// Clone returns an additional send-only handle.
func (b *Broadcaster[T]) Clone() *Broadcaster[T] {
	b.st.mu.Lock()
	b.st.senders++
	b.st.mu.Unlock()
	return &Broadcaster[T]{st: b.st}
}

// Close releases this handle. When the last sender is gone, queued values
// still fan out, then subscriber workers shut down. Idempotent.
func (b *Broadcaster[T]) Close() {
	if b.closed.CompareAndSwap(false, true) {
		b.st.dropSender()
	}
}

func (st *broadcastState[T]) send(v T) error {
	st.mu.Lock()
	if !st.regOpen && len(st.subs) == 0 {
		st.mu.Unlock()
		return ErrDisconnected
	}
	st.items = append(st.items, v)
	spawn := !st.dispatchActive && len(st.subs) > 0
	if spawn {
		st.dispatchActive = true
	}
	st.mu.Unlock()
	if spawn {
		executor.Shared().Spawn(&broadcastDispatch[T]{st: st})
	}
	return nil
}

// removeSubscriber takes one subscriber out of the fan-out. Other
// subscribers are unaffected.
func (st *broadcastState[T]) removeSubscriber(sub *subscriber[T]) {
	st.mu.Lock()
	if sub.removed {
		st.mu.Unlock()
		return
	}
	sub.removed = true
	kept := st.subs[:0]
	for _, s := range st.subs {
		if !s.removed {
			kept = append(kept, s)
		}
	}
	st.subs = kept
	st.mu.Unlock()
	if sub.worker != nil {
		sub.worker.stop()
	}
}

// dropSender releases one send handle; the last one triggers teardown
// once the queue has fully fanned out.
func (st *broadcastState[T]) dropSender() {
	st.mu.Lock()
	st.senders--
	st.mu.Unlock()
	st.finalizeIfDisconnected()
}

// finalizeIfDisconnected tears down all subscribers once no sender
// remains and every queued value has been delivered. Dedicated workers
// exit here.
func (st *broadcastState[T]) finalizeIfDisconnected() {
	st.mu.Lock()
	if st.senders > 0 || st.dispatchActive || len(st.items) > 0 {
		st.mu.Unlock()
		return
	}
	subs := st.subs
	st.subs = nil
	for _, s := range subs {
		s.removed = true
	}
	st.mu.Unlock()
	for _, s := range subs {
		if s.worker != nil {
			s.worker.stop()
		}
	}
}

// broadcastDispatch fans queued values out to subscribers. It is a
// single resumable state machine: position within the subscriber order,
// plus at most one in-flight async future or worker hand-off. It runs on
// the shared executor and suspends instead of blocking.
type broadcastDispatch[T any] struct {
	st       *broadcastState[T]
	hasValue bool
	value    T
	order    []*subscriber[T]
	idx      int
	inflight future.ErrorFuture
	handed   bool
}

func (d *broadcastDispatch[T]) Poll(cx *future.Context) future.Poll {
	st := d.st
	for {
		if !d.hasValue {
			st.mu.Lock()
			if len(st.items) == 0 || len(st.subs) == 0 {
				st.dispatchActive = false
				st.mu.Unlock()
				st.finalizeIfDisconnected()
				return future.Ready
			}
			d.value = st.items[0]
			st.items = st.items[1:]
			// The fan-out set is fixed when the value is taken:
			// subscribers registered afterwards see only later values.
			d.order = make([]*subscriber[T], len(st.subs))
			copy(d.order, st.subs)
			d.idx = 0
			d.hasValue = true
			st.mu.Unlock()
		}

		for d.idx < len(d.order) {
			sub := d.order[d.idx]
			st.mu.Lock()
			removed := sub.removed
			st.mu.Unlock()
			if removed {
				d.handed = false
				d.idx++
				continue
			}

			switch sub.kind {
			case behaviorNonBlocking:
				err := runCallback(sub.nonBlocking, d.value)
				if isDisconnect(err) {
					st.removeSubscriber(sub)
				}
				reportCallbackError("channel.broadcast", err)
				d.idx++

			case behaviorAsync:
				if d.inflight == nil {
					f := startAsyncCallback(sub.async, d.value)
					if f == nil {
						st.removeSubscriber(sub)
						d.idx++
						continue
					}
					d.inflight = f
				}
				if d.inflight.Poll(cx) == future.Pending {
					return future.Pending
				}
				err := d.inflight.Err()
				d.inflight = nil
				if isDisconnect(err) {
					st.removeSubscriber(sub)
				}
				reportCallbackError("channel.broadcast", err)
				d.idx++

			case behaviorBlocking:
				if !d.handed {
					if !sub.worker.submit(d.value, cx.Waker()) {
						// Worker already stopped.
						st.removeSubscriber(sub)
						d.idx++
						continue
					}
					d.handed = true
				}
				done, err := sub.worker.result()
				if !done {
					return future.Pending
				}
				d.handed = false
				if isDisconnect(err) {
					st.removeSubscriber(sub)
				}
				reportCallbackError("channel.broadcast", err)
				d.idx++
			}
		}
		d.hasValue = false
	}
}

// broadcastJob is one value handed to a blocking subscriber's worker.
type broadcastJob[T any] struct {
	value T
	wake  future.Waker
}

// broadcastWorker is the dedicated goroutine for one blocking broadcast
// subscriber. Fan-out hands it one value at a time and is woken when the
// callback finishes, keeping arbitrarily long work off the shared
// executor.
type broadcastWorker[T any] struct {
	mu     sync.Mutex
	in     chan broadcastJob[T]
	closed bool

	resultMu sync.Mutex
	done     bool
	err      error
}

func newBroadcastWorker[T any](fn func(T) error) *broadcastWorker[T] {
	w := &broadcastWorker[T]{in: make(chan broadcastJob[T], 1)}
	go func() {
		for job := range w.in {
			err := runCallback(fn, job.value)
			w.resultMu.Lock()
			w.done = true
			w.err = err
			w.resultMu.Unlock()
			job.wake()
		}
	}()
	return w
}

// submit hands one value to the worker. It never blocks: fan-out only
// submits after the previous value completed, so the buffer is free.
// Returns false once the worker has stopped.
func (w *broadcastWorker[T]) submit(v T, wake future.Waker) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return false
	}
	w.resultMu.Lock()
	w.done = false
	w.err = nil
	w.resultMu.Unlock()
	select {
	case w.in <- broadcastJob[T]{value: v, wake: wake}:
		return true
	default:
		// Unreachable while the one-value-at-a-time invariant holds.
		return false
	}
}

// result reports whether the last submitted value completed and with
// what error.
func (w *broadcastWorker[T]) result() (bool, error) {
	w.resultMu.Lock()
	defer w.resultMu.Unlock()
	return w.done, w.err
}

// stop shuts the worker goroutine down. Idempotent.
func (w *broadcastWorker[T]) stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.closed {
		w.closed = true
		close(w.in)
	}
}
