// Package executor runs the shared background callback loop for the
// reactive core.
//
// Exactly one executor goroutine serializes all non-blocking and
// asynchronous callback work: cell change notifications, channel callback
// dispatch, and cooperative polling of in-flight futures. Blocking
// callbacks never run here; they get their own dedicated worker goroutine
// so arbitrarily long work cannot stall shared notification delivery.
//
// The executor is created lazily on first use and lives for the process
// lifetime. Producers hand work over by message passing into its task
// queue, never by lock hand-off.
package executor

import (
	"sync"

	"github.com/creachadair/msync"

	"github.com/go-drift/reactive/pkg/errors"
	"github.com/go-drift/reactive/pkg/future"
)

// Task is one unit of callback work scheduled on the executor.
type Task func()

// Executor owns the background callback goroutine and its work queues.
type Executor struct {
	mu      sync.Mutex
	tasks   []Task
	pending []future.Future
	wake    *msync.Trigger
}

var (
	sharedOnce sync.Once
	shared     *Executor
)

// Shared returns the process-wide executor, starting its goroutine on
// first use.
func Shared() *Executor {
	sharedOnce.Do(func() {
		shared = New()
	})
	return shared
}

// New creates an executor and starts its background goroutine. Most code
// should use [Shared]; separate executors exist for isolation in
// benchmarks.
func New() *Executor {
	e := &Executor{wake: msync.NewTrigger()}
	go e.run()
	return e
}

// Enqueue schedules a task to run on the executor goroutine. Tasks run in
// enqueue order, interleaved with future polling.
func (e *Executor) Enqueue(t Task) {
	if t == nil {
		return
	}
	e.mu.Lock()
	e.tasks = append(e.tasks, t)
	e.mu.Unlock()
	e.wake.Signal()
}

// Spawn adds a future to the pending set. The future is polled once per
// executor pass until it reports Ready; a Pending future is only
// guaranteed another poll after its waker fires.
func (e *Executor) Spawn(f future.Future) {
	if f == nil {
		return
	}
	e.mu.Lock()
	e.pending = append(e.pending, f)
	e.mu.Unlock()
	e.wake.Signal()
}

// Waker returns a waker that re-arms an executor pass. Futures spawned on
// this executor register it so completing work elsewhere gets them polled
// again.
func (e *Executor) Waker() future.Waker {
	return e.wake.Signal
}

func (e *Executor) run() {
	cx := future.NewContext(e.wake.Signal)
	for {
		// Arm the trigger before scanning for work so a signal arriving
		// mid-pass is observed instead of lost.
		ready := e.wake.Ready()

		e.drainTasks()
		e.pollFutures(cx)

		e.mu.Lock()
		idle := len(e.tasks) == 0
		e.mu.Unlock()
		if idle {
			<-ready
		}
	}
}

// drainTasks runs every task that is immediately available, in order.
func (e *Executor) drainTasks() {
	for {
		e.mu.Lock()
		if len(e.tasks) == 0 {
			e.mu.Unlock()
			return
		}
		t := e.tasks[0]
		e.tasks = e.tasks[1:]
		e.mu.Unlock()
		e.runTask(t)
	}
}

// pollFutures polls every currently pending future exactly once, bounding
// the latency any single slow future can impose on the others.
func (e *Executor) pollFutures(cx *future.Context) {
	e.mu.Lock()
	batch := e.pending
	e.pending = nil
	e.mu.Unlock()
	if len(batch) == 0 {
		return
	}

	var still []future.Future
	for _, f := range batch {
		if e.pollOne(f, cx) == future.Pending {
			still = append(still, f)
		}
	}
	if len(still) > 0 {
		e.mu.Lock()
		// Futures spawned during the pass were appended to e.pending
		// already; keep them after the survivors to preserve spawn order.
		e.pending = append(still, e.pending...)
		e.mu.Unlock()
	}
}

// runTask executes one task, containing panics from user callbacks so the
// shared loop survives them.
func (e *Executor) runTask(t Task) {
	defer errors.Recover("executor.runTask")
	t()
}

// pollOne polls a single future. A panicking future is reported and
// treated as complete; polling it again would likely panic forever.
func (e *Executor) pollOne(f future.Future, cx *future.Context) (result future.Poll) {
	result = future.Ready
	defer errors.Recover("executor.pollFuture")
	result = f.Poll(cx)
	return result
}
