package reactive

import (
	"runtime"
	"strconv"
	"strings"
	"sync"
)

// deadlockGuard is the process-wide registry of cells currently running
// their synchronous change callbacks, keyed by cell identity and recording
// the dispatching goroutine. A mutation finding its own cell registered by
// its own goroutine is reentrant and would deadlock on the cell's lock.
//
// The map is lazily initialized on first use and lives for the process
// lifetime.
var deadlockGuard struct {
	mu     sync.Mutex
	active map[uint64]uint64 // cell id -> goroutine id
}

// guardEnter marks a cell as dispatching callbacks on the calling
// goroutine. Called with the cell's lock held, so at most one entry per
// cell exists at a time.
func guardEnter(cellID uint64) {
	gid := goroutineID()
	deadlockGuard.mu.Lock()
	if deadlockGuard.active == nil {
		deadlockGuard.active = make(map[uint64]uint64)
	}
	deadlockGuard.active[cellID] = gid
	deadlockGuard.mu.Unlock()
}

// guardExit clears a cell's dispatching mark.
func guardExit(cellID uint64) {
	deadlockGuard.mu.Lock()
	delete(deadlockGuard.active, cellID)
	deadlockGuard.mu.Unlock()
}

// guardHeldByCaller reports whether the calling goroutine is currently
// dispatching the given cell's callbacks. Checked before acquiring the
// cell lock, because a reentrant caller would otherwise block forever.
func guardHeldByCaller(cellID uint64) bool {
	deadlockGuard.mu.Lock()
	gid, ok := deadlockGuard.active[cellID]
	deadlockGuard.mu.Unlock()
	return ok && gid == goroutineID()
}

// goroutineID extracts the current goroutine's id from the runtime stack
// header ("goroutine N [running]:"). The runtime offers no direct API for
// this; parsing the header is the standard workaround and is only done on
// the mutation path of cells that have synchronous callbacks registered.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	header := strings.TrimPrefix(string(buf[:n]), "goroutine ")
	if i := strings.IndexByte(header, ' '); i > 0 {
		if id, err := strconv.ParseUint(header[:i], 10, 64); err == nil {
			return id
		}
	}
	return 0
}
