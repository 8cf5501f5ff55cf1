package channel

import (
	"sync/atomic"

	"github.com/go-drift/reactive/pkg/future"
)

// Sender is a producer handle onto an MPSC channel. Senders may be cloned
// for additional producers; each clone must be closed. Once every sender
// is closed the channel receiver-disconnects after draining.
type Sender[T any] struct {
	q      *queueState[T]
	closed atomic.Bool
}

// Clone returns an additional producer handle.
func (s *Sender[T]) Clone() *Sender[T] {
	s.q.addSender()
	return &Sender[T]{q: s.q}
}

// Close releases this producer handle. Idempotent.
func (s *Sender[T]) Close() {
	if s.closed.CompareAndSwap(false, true) {
		s.q.dropSender()
	}
}

// Send enqueues v, blocking while a bounded channel is full. It returns
// ErrDisconnected once no receivers or callback registrations remain; the
// caller still holds v.
func (s *Sender[T]) Send(v T) error {
	return s.q.send(v)
}

// TrySend enqueues v without blocking, failing fast with ErrFull or
// ErrDisconnected.
func (s *Sender[T]) TrySend(v T) error {
	return s.q.trySend(v)
}

// ForceSend enqueues v unconditionally. When the channel is full the
// oldest unread value is evicted and returned with wasEvicted true. The
// only failure is disconnection.
func (s *Sender[T]) ForceSend(v T) (evicted T, wasEvicted bool, err error) {
	return s.q.forceSend(v)
}

// SendAsync returns a future that enqueues v with the same semantics as
// Send, but suspends a cooperative task via its waker instead of blocking
// a goroutine. Spawn it on the executor or drive it with future.Block /
// the future's Wait method.
func (s *Sender[T]) SendAsync(v T) *SendFuture[T] {
	return &SendFuture[T]{q: s.q, value: v}
}

// SendFuture is an in-flight asynchronous send.
type SendFuture[T any] struct {
	q     *queueState[T]
	value T
	done  bool
	err   error
}

// Poll attempts the send. On a full queue it registers the context's
// waker, fired by the next pop or disconnect.
func (f *SendFuture[T]) Poll(cx *future.Context) future.Poll {
	if f.done {
		return future.Ready
	}
	q := f.q
	q.mu.Lock()
	if q.senderDisconnectedLocked() {
		q.mu.Unlock()
		f.done = true
		f.err = ErrDisconnected
		return future.Ready
	}
	if !q.hasSpaceLocked() {
		q.wakers = append(q.wakers, cx.Waker())
		q.mu.Unlock()
		return future.Pending
	}
	wasEmpty, notify := q.pushLocked(f.value)
	q.mu.Unlock()
	q.afterPush(wasEmpty, notify)
	f.done = true
	return future.Ready
}

// Err returns the send's outcome; only meaningful once Poll has returned
// Ready.
func (f *SendFuture[T]) Err() error {
	return f.err
}

// Wait drives the future to completion on the calling goroutine.
func (f *SendFuture[T]) Wait() error {
	return future.BlockErr(f)
}
