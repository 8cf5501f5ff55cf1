// Package reactive provides versioned shared-value cells with change
// notification, the primitive that widgets, animations, and layout code
// observe state through.
//
// # Core Components
//
//   - [Dynamic]: a mutex-protected shared value carrying a [Generation]
//     tag that strictly increases on every successful mutation. Change
//     callbacks registered with [Dynamic.OnChange] run synchronously, in
//     registration order, while the mutation still holds the cell's lock;
//     callbacks registered with [Dynamic.ForEach] run later on the shared
//     background executor and may coalesce rapid mutations into one
//     delivery of the latest value.
//
//   - [Reader]: a per-consumer cursor into a cell's generation history.
//     Every reader is independent; a slow reader never blocks other
//     readers or writers, and may skip intermediate values. Only the most
//     recent value is guaranteed visible.
//
//   - [CallbackHandle]: a disposable registration token. Closing it
//     deregisters the callback unless [CallbackHandle.Persist] was called.
//
// # Ownership
//
// Go has no destructors, so cell ownership is explicit: [Dynamic.Clone]
// adds an owner and [Dynamic.Close] removes one. Closing the last owner
// orphans the value; readers blocked in [Reader.Get] or
// [Reader.BlockUntilUpdated] are woken and observe the abandonment
// instead of hanging, which is the termination condition for consumer
// loops.
//
// # Deadlock Detection
//
// A change callback that synchronously mutates its own cell again would
// deadlock on the cell's lock. A process-wide guard detects this
// same-goroutine, same-cell reentrancy and the mutation returns
// [ErrDeadlock] immediately instead of blocking. The guard is a narrow
// detector only; it does not catch cross-cell or cross-goroutine cycles.
//
// # Generations
//
// Generation arithmetic wraps modularly. After a full wraparound, equality
// comparison cannot distinguish "unchanged" from "changed exactly 2^64
// times"; this is a documented limitation, not something callers should
// rely on.
package reactive
