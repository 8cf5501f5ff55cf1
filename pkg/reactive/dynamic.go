package reactive

import (
	stderrors "errors"
	"sync"
	"sync/atomic"

	"github.com/creachadair/msync"

	"github.com/go-drift/reactive/pkg/errors"
	"github.com/go-drift/reactive/pkg/executor"
)

// Generation is a revision tag on a cell. It strictly increases by one on
// every successful mutation and wraps modularly at the limit of uint64.
// Equality of two observed generations means "no change in between",
// except across a full wraparound, which equality cannot detect.
type Generation uint64

// Next returns the generation following g, wrapping modularly.
func (g Generation) Next() Generation {
	return g + 1
}

// nextCellID assigns process-unique cell identities for the deadlock guard.
var nextCellID atomic.Uint64

// cellState is the shared state behind every handle onto one cell.
type cellState[T any] struct {
	mu         sync.Mutex
	value      T
	generation Generation
	callbacks  []*registeredCallback[T] // synchronous, run under mu
	observers  []*registeredCallback[T] // run on the shared executor
	owners     int
	readers    int

	// updated is signaled after every mutation and on teardown, waking
	// blocked readers.
	updated *msync.Trigger

	id uint64

	// notifyPending is true while an observer-notification task is queued
	// on the executor. Mutations only enqueue on the false->true
	// transition to avoid redundant wakeups.
	notifyPending  bool
	nextCallbackID uint64
}

// Dynamic is a shared, versioned value. Handles are created by
// [NewDynamic] and [Dynamic.Clone]; all handles refer to the same
// underlying cell. The zero Dynamic is not valid.
type Dynamic[T any] struct {
	st     *cellState[T]
	closed atomic.Bool
}

// NewDynamic creates a cell holding initial with a single owner handle.
func NewDynamic[T any](initial T) *Dynamic[T] {
	st := &cellState[T]{
		value:   initial,
		owners:  1,
		updated: msync.NewTrigger(),
		id:      nextCellID.Add(1),
	}
	return &Dynamic[T]{st: st}
}

// Clone returns an additional owner handle onto the same cell.
func (d *Dynamic[T]) Clone() *Dynamic[T] {
	st := d.st
	st.mu.Lock()
	st.owners++
	st.mu.Unlock()
	return &Dynamic[T]{st: st}
}

// Close releases this owner handle. When the last owner is gone the value
// is orphaned: blocked readers are woken so they observe the abandonment
// rather than hanging. Close is idempotent per handle.
func (d *Dynamic[T]) Close() {
	if !d.closed.CompareAndSwap(false, true) {
		return
	}
	st := d.st
	st.mu.Lock()
	st.owners--
	orphaned := st.owners == 0
	st.mu.Unlock()
	if orphaned {
		st.updated.Signal()
	}
}

// Get returns a copy of the current value. The generation is unchanged.
func (d *Dynamic[T]) Get() T {
	st := d.st
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.value
}

// With runs fn against the current value while holding the cell's lock.
// The pointer is only valid for the duration of fn, and fn must not
// mutate through it; use [Dynamic.Mutate] for changes so the generation
// advances and callbacks fire.
func (d *Dynamic[T]) With(fn func(value *T)) {
	st := d.st
	st.mu.Lock()
	defer st.mu.Unlock()
	fn(&st.value)
}

// Generation returns the cell's current generation.
func (d *Dynamic[T]) Generation() Generation {
	st := d.st
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.generation
}

// Set stores v as the new value. It returns [ErrDeadlock] when called
// synchronously from one of this cell's own change callbacks.
func (d *Dynamic[T]) Set(v T) error {
	return d.Mutate(func(value *T) {
		*value = v
	})
}

// Replace stores v and returns the previous value.
func (d *Dynamic[T]) Replace(v T) (T, error) {
	var old T
	err := d.Mutate(func(value *T) {
		old = *value
		*value = v
	})
	return old, err
}

// Mutate runs fn against the value, advances the generation, then invokes
// every registered change callback in insertion order while still holding
// the cell's lock. Callbacks returning [ErrCallbackDisconnected] are
// removed. After the lock is released, blocked readers are woken and,
// when the cell has executor-side observers, one notification task is
// scheduled unless one is already pending.
//
// Calling Mutate synchronously from one of the same cell's change
// callbacks returns [ErrDeadlock] without blocking.
func (d *Dynamic[T]) Mutate(fn func(value *T)) error {
	st := d.st
	// Reentrancy must be checked before taking the lock; a reentrant
	// caller already holds it.
	if guardHeldByCaller(st.id) {
		return ErrDeadlock
	}

	st.mu.Lock()
	fn(&st.value)
	st.generation++

	if len(st.callbacks) > 0 {
		guardEnter(st.id)
		st.runChangeCallbacksLocked()
		guardExit(st.id)
	}

	needNotify := len(st.observers) > 0 && !st.notifyPending
	if needNotify {
		st.notifyPending = true
	}
	st.mu.Unlock()

	st.updated.Signal()
	if needNotify {
		executor.Shared().Enqueue(st.notifyObservers)
	}
	return nil
}

// runChangeCallbacksLocked dispatches the synchronous callbacks in
// insertion order, dropping any that disconnect. Caller holds st.mu and
// the deadlock guard entry for this cell.
func (st *cellState[T]) runChangeCallbacksLocked() {
	kept := st.callbacks[:0]
	for _, cb := range st.callbacks {
		if cb.removed.Load() {
			continue
		}
		if err := cb.fn(st.value); err != nil {
			if stderrors.Is(err, ErrCallbackDisconnected) {
				cb.removed.Store(true)
				continue
			}
			errors.Report(&errors.ReactiveError{
				Op:   "reactive.onChange",
				Kind: errors.KindCallback,
				Err:  err,
			})
		}
		kept = append(kept, cb)
	}
	st.callbacks = kept
}

// OnChange registers a synchronous change callback. The callback runs
// inside every future mutation, under the cell's lock, and therefore must
// be cheap and non-blocking; a "needs redraw" signal is the intended
// shape. Mutating the same cell from the callback fails with
// [ErrDeadlock].
func (d *Dynamic[T]) OnChange(fn Callback[T]) *CallbackHandle {
	return d.register(&d.st.callbacks, fn)
}

// ForEach registers a non-blocking callback run by the shared background
// executor after mutations. Rapid successive mutations may be coalesced:
// the callback always observes the most recent value, in mutation order,
// but intermediate values can be skipped.
func (d *Dynamic[T]) ForEach(fn Callback[T]) *CallbackHandle {
	return d.register(&d.st.observers, fn)
}

func (d *Dynamic[T]) register(list *[]*registeredCallback[T], fn Callback[T]) *CallbackHandle {
	st := d.st
	st.mu.Lock()
	st.nextCallbackID++
	cb := &registeredCallback[T]{id: st.nextCallbackID, fn: fn}
	*list = append(*list, cb)
	st.mu.Unlock()

	return newCallbackHandle(func() {
		cb.removed.Store(true)
		st.mu.Lock()
		kept := (*list)[:0]
		for _, c := range *list {
			if !c.removed.Load() {
				kept = append(kept, c)
			}
		}
		*list = kept
		st.mu.Unlock()
	})
}

// notifyObservers is the executor task that delivers the latest value to
// ForEach observers. It reads the value once; mutations landing after
// that read schedule their own task.
func (st *cellState[T]) notifyObservers() {
	st.mu.Lock()
	st.notifyPending = false
	v := st.value
	obs := make([]*registeredCallback[T], len(st.observers))
	copy(obs, st.observers)
	st.mu.Unlock()

	var dropped bool
	for _, cb := range obs {
		if cb.removed.Load() {
			continue
		}
		if err := runObserver(cb.fn, v); err != nil {
			if stderrors.Is(err, ErrCallbackDisconnected) {
				cb.removed.Store(true)
				dropped = true
				continue
			}
			errors.Report(&errors.ReactiveError{
				Op:   "reactive.forEach",
				Kind: errors.KindCallback,
				Err:  err,
			})
		}
	}
	if dropped {
		st.mu.Lock()
		kept := st.observers[:0]
		for _, c := range st.observers {
			if !c.removed.Load() {
				kept = append(kept, c)
			}
		}
		st.observers = kept
		st.mu.Unlock()
	}
}

// runObserver contains panics from one observer so the rest of the list
// still runs; a panicking observer is removed like a disconnected one.
func runObserver[T any](fn Callback[T], v T) (err error) {
	defer errors.RecoverWithCallback("reactive.forEach", func(any) {
		err = ErrCallbackDisconnected
	})
	return fn(v)
}
