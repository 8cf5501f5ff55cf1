package reactive

import "errors"

var (
	// ErrCallbackDisconnected is returned by a callback to request its own
	// permanent removal. It is never fatal to the cell or channel as a
	// whole; other callbacks keep running.
	ErrCallbackDisconnected = errors.New("reactive: callback disconnected")

	// ErrDeadlock is returned by a mutation attempted synchronously from
	// within one of the same cell's change callbacks.
	ErrDeadlock = errors.New("reactive: cell mutated from its own change callback")
)
