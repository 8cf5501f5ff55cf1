package channel

import (
	"errors"

	"github.com/go-drift/reactive/pkg/reactive"
)

var (
	// ErrFull is returned by TrySend when a bounded channel has no free
	// capacity. Retrying after a receive is expected to succeed.
	ErrFull = errors.New("channel: full")

	// ErrEmpty is returned by TryReceive when no value is queued, and by
	// ReceiveTimeout when the timeout elapses first.
	ErrEmpty = errors.New("channel: empty")

	// ErrDisconnected is returned by send operations once no receivers or
	// callback registrations remain, and by receive operations once all
	// senders are gone and the queue has drained.
	ErrDisconnected = errors.New("channel: disconnected")

	// ErrCallbackDisconnected is returned by a callback to request its own
	// permanent removal. It is the same sentinel the reactive package
	// uses, so one callback can serve both cells and channels.
	ErrCallbackDisconnected = reactive.ErrCallbackDisconnected
)
