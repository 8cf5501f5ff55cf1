package channel

import (
	stderrors "errors"
	"sync/atomic"

	"github.com/go-drift/reactive/pkg/errors"
	"github.com/go-drift/reactive/pkg/future"
)

// handleState tracks the lifecycle of a channel's callback registration.
type handleState int

const (
	handleNone      handleState = iota // no callback registered
	handleHeld                         // registered, handle still live
	handlePersisted                    // Persist called, handle may be dropped
	handleDropped                      // handle closed without Persist
)

// CallbackHandle is the disposable token returned by the OnReceive
// registration methods.
//
// Closing a handle that was not persisted disconnects consumption
// immediately: for an MPSC channel the whole channel becomes
// sender-disconnected, for a broadcast channel only that one subscriber
// is removed. Close is idempotent.
type CallbackHandle struct {
	persisted atomic.Bool
	closed    atomic.Bool
	drop      func()
}

func newHandle(drop func()) *CallbackHandle {
	return &CallbackHandle{drop: drop}
}

// Persist leaves the callback running after the handle is closed or
// discarded. Returns the handle for chaining.
func (h *CallbackHandle) Persist() *CallbackHandle {
	h.persisted.Store(true)
	return h
}

// Close disconnects the callback unless the handle was persisted.
func (h *CallbackHandle) Close() {
	if h.closed.CompareAndSwap(false, true) && !h.persisted.Load() {
		h.drop()
	}
}

// runCallback invokes a user callback, converting a panic into a
// disconnection after reporting it. A panicking callback cannot safely be
// invoked again.
func runCallback[T any](fn func(T) error, v T) (err error) {
	defer errors.RecoverWithCallback("channel.callback", func(any) {
		err = ErrCallbackDisconnected
	})
	return fn(v)
}

// startAsyncCallback invokes a future-returning callback. A nil future or
// a panic counts as disconnection.
func startAsyncCallback[T any](fn func(T) future.ErrorFuture, v T) (f future.ErrorFuture) {
	defer errors.RecoverWithCallback("channel.asyncCallback", func(any) {
		f = nil
	})
	return fn(v)
}

// isDisconnect reports whether a callback's error asks for removal.
func isDisconnect(err error) bool {
	return stderrors.Is(err, ErrCallbackDisconnected)
}

// reportCallbackError forwards a non-disconnect callback error to the
// structured handler; the callback stays registered.
func reportCallbackError(op string, err error) {
	if err == nil || isDisconnect(err) {
		return
	}
	errors.Report(&errors.ReactiveError{
		Op:   op,
		Kind: errors.KindCallback,
		Err:  err,
	})
}
