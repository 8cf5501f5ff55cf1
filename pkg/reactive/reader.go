package reactive

import "sync/atomic"

// Reader is an independent cursor into a cell's generation history.
//
// Each reader tracks the last generation it observed. Readers never
// interfere with each other or with writers: a slow reader only skips
// intermediate values, it cannot block anyone. Two readers consuming at
// different rates may observe different subsets of the value's history;
// only the most recent value is guaranteed visible.
type Reader[T any] struct {
	st       *cellState[T]
	lastRead Generation
	closed   atomic.Bool
}

// Reader creates a reader whose cursor starts at the current generation,
// so its first Get blocks until the next mutation.
func (d *Dynamic[T]) Reader() *Reader[T] {
	st := d.st
	st.mu.Lock()
	st.readers++
	r := &Reader[T]{st: st, lastRead: st.generation}
	st.mu.Unlock()
	return r
}

// Clone returns a new reader sharing the same cell but with its own
// cursor, positioned at this reader's last-read generation.
func (r *Reader[T]) Clone() *Reader[T] {
	st := r.st
	st.mu.Lock()
	st.readers++
	nr := &Reader[T]{st: st, lastRead: r.lastRead}
	st.mu.Unlock()
	return nr
}

// Close releases the reader's claim on the cell. Idempotent.
func (r *Reader[T]) Close() {
	if !r.closed.CompareAndSwap(false, true) {
		return
	}
	st := r.st
	st.mu.Lock()
	st.readers--
	st.mu.Unlock()
}

// BlockUntilUpdated blocks until the cell's generation differs from the
// last one this reader observed, returning true. It returns false without
// blocking once the value is orphaned (every owner handle closed, only
// readers remain) and no unobserved generation exists, which terminates
// consumer loops.
func (r *Reader[T]) BlockUntilUpdated() bool {
	st := r.st
	st.mu.Lock()
	for {
		if st.generation != r.lastRead {
			st.mu.Unlock()
			return true
		}
		if st.owners == 0 {
			st.mu.Unlock()
			return false
		}
		// Arm the trigger before releasing the lock so a mutation landing
		// in between still wakes us.
		ready := st.updated.Ready()
		st.mu.Unlock()
		<-ready
		st.mu.Lock()
	}
}

// Get blocks until a generation this reader has not observed exists, then
// returns a copy of the current value and advances the cursor. It returns
// immediately when the cursor is already stale. The second result is
// false when the cell was orphaned before a new generation appeared; the
// returned value is then the final one.
func (r *Reader[T]) Get() (T, bool) {
	ok := r.BlockUntilUpdated()
	st := r.st
	st.mu.Lock()
	v := st.value
	r.lastRead = st.generation
	st.mu.Unlock()
	return v, ok
}

// Peek returns the current value without blocking or moving the cursor.
func (r *Reader[T]) Peek() T {
	st := r.st
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.value
}
