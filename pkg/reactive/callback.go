package reactive

import "sync/atomic"

// Callback observes a cell's value after each change. Returning
// [ErrCallbackDisconnected] permanently removes the callback; any other
// non-nil error is reported through the error handler but leaves the
// callback registered.
type Callback[T any] func(value T) error

// registeredCallback is one entry in a cell's callback or observer list.
// The removed flag is atomic: observer dispatch checks it without the
// cell's lock, concurrently with handle Close.
type registeredCallback[T any] struct {
	id      uint64
	fn      Callback[T]
	removed atomic.Bool
}

// CallbackHandle is a disposable token for a registered callback.
//
// Closing the handle deregisters the callback unless Persist was called
// first. Handles are safe for concurrent use; Close is idempotent.
type CallbackHandle struct {
	remove    func()
	persisted atomic.Bool
	closed    atomic.Bool
}

func newCallbackHandle(remove func()) *CallbackHandle {
	return &CallbackHandle{remove: remove}
}

// Persist keeps the callback registered even after the handle is closed
// or discarded. Returns the handle for chaining.
func (h *CallbackHandle) Persist() *CallbackHandle {
	h.persisted.Store(true)
	return h
}

// Close deregisters the callback unless the handle was persisted.
func (h *CallbackHandle) Close() {
	if h.closed.CompareAndSwap(false, true) && !h.persisted.Load() {
		h.remove()
	}
}

// IsPersisted reports whether Persist has been called.
func (h *CallbackHandle) IsPersisted() bool {
	return h.persisted.Load()
}
