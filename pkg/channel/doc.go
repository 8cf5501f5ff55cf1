// Package channel provides the multi-producer/single-consumer and
// broadcast queues the reactive core delivers values through.
//
// # Channel Kinds
//
//   - MPSC: [NewUnbounded] and [NewBounded] return a [Sender] and a
//     [Receiver]. Senders are cloneable; the single consumer either pulls
//     values manually (Receive/TryReceive/ReceiveTimeout) or registers
//     exactly one callback via the receiver's OnReceive variants.
//
//   - Broadcast: [NewBroadcast] returns a [BroadcastChannel] that fans
//     every sent value out to all currently registered subscribers, in
//     registration order, before the next queued value is taken.
//     [BroadcastChannel.Broadcaster] splits off a send-only handle so the
//     registration side can be dropped while sending continues.
//
// # Delivery and Backpressure
//
// A single MPSC channel delivers values in strict send order with no
// coalescing. Bounded channels apply backpressure: [Sender.Send] blocks
// until space frees, [Sender.TrySend] fails fast with [ErrFull],
// [Sender.SendAsync] suspends a cooperative task via a waker, and
// [Sender.ForceSend] evicts the oldest unread value to make room.
//
// # Callbacks
//
// Non-blocking and async callbacks run on the shared background executor;
// registering a blocking callback lazily spawns a dedicated goroutine so
// long-running work never stalls the executor. Every registration returns
// a [CallbackHandle]: closing it disconnects consumption immediately
// unless [CallbackHandle.Persist] was called first.
//
// # Disconnection
//
// A channel is sender-disconnected once all receivers and callback
// registrations are gone, and receiver-disconnected once all senders are
// gone. Queued values are always drained before [ErrDisconnected] is
// reported on the receive side. Because Go passes values to Send by
// value, a failed send never loses data; the caller still holds the
// value alongside the returned error.
package channel
