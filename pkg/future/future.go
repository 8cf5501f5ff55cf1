// Package future provides a minimal cooperative polling abstraction used by
// the reactive core to suspend and resume asynchronous operations without
// blocking an OS thread.
//
// A [Future] is polled with a [Context]; if the operation cannot complete
// yet it stores the context's [Waker] and returns [Pending]. Whoever later
// unblocks the operation calls the waker, which causes the owning executor
// to poll the future again. [Block] adapts a future to a synchronous call
// for code that is running on an ordinary goroutine.
package future

import "github.com/creachadair/msync"

// Poll is the result of polling a Future.
type Poll int

const (
	// Pending indicates the future is not finished. The future has stored
	// the context's waker and will be polled again after it fires.
	Pending Poll = iota
	// Ready indicates the future has completed and must not be polled again.
	Ready
)

func (p Poll) String() string {
	if p == Ready {
		return "ready"
	}
	return "pending"
}

// Waker resumes the task that owns a pending future. Wakers must be safe to
// call from any goroutine and may be called more than once; extra calls are
// harmless.
type Waker func()

// Context carries the waker for the current poll.
type Context struct {
	waker Waker
}

// NewContext creates a poll context with the given waker.
func NewContext(waker Waker) *Context {
	return &Context{waker: waker}
}

// Waker returns the waker a pending future should arrange to be called.
func (cx *Context) Waker() Waker {
	return cx.waker
}

// Future is a resumable operation driven by repeated polling.
type Future interface {
	// Poll advances the operation. A future returning Pending must have
	// registered cx.Waker() somewhere that will call it once progress is
	// possible. After returning Ready the future must not be polled again.
	Poll(cx *Context) Poll
}

// ErrorFuture is a future whose completion yields an error. Err is only
// meaningful after Poll has returned Ready.
type ErrorFuture interface {
	Future
	Err() error
}

// Block polls f to completion on the calling goroutine, parking between
// polls until the future's waker fires.
func Block(f Future) {
	t := msync.NewTrigger()
	cx := NewContext(t.Signal)
	for {
		// Arm the trigger before polling so a wake between the poll and the
		// wait is not lost.
		ready := t.Ready()
		if f.Poll(cx) == Ready {
			return
		}
		<-ready
	}
}

// BlockErr polls f to completion and returns its error.
func BlockErr(f ErrorFuture) error {
	Block(f)
	return f.Err()
}
