package channel_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-drift/reactive/pkg/channel"
	"github.com/go-drift/reactive/pkg/future"
)

func TestBroadcastFanOut(t *testing.T) {
	b := channel.NewBroadcast[string]()
	defer b.Close()

	const subscribers = 3
	recs := make([]*recorder[string], subscribers)
	for i := range recs {
		recs[i] = &recorder[string]{}
		rec := recs[i]
		b.OnReceiveNonBlocking(func(v string) error {
			rec.add(v)
			return nil
		}).Persist()
	}

	require.NoError(t, b.Send("v"))

	for i, rec := range recs {
		require.Eventually(t, func() bool { return rec.len() == 1 },
			2*time.Second, 5*time.Millisecond, "subscriber %d", i)
		assert.Equal(t, []string{"v"}, rec.snapshot())
	}
}

func TestBroadcastPerSubscriberOrdering(t *testing.T) {
	b := channel.NewBroadcast[int]()
	defer b.Close()

	first := &recorder[int]{}
	second := &recorder[int]{}
	b.OnReceiveNonBlocking(func(v int) error { first.add(v); return nil }).Persist()
	b.OnReceiveNonBlocking(func(v int) error { second.add(v); return nil }).Persist()

	for i := 1; i <= 5; i++ {
		require.NoError(t, b.Send(i))
	}

	want := []int{1, 2, 3, 4, 5}
	require.Eventually(t, func() bool { return first.len() == 5 && second.len() == 5 },
		2*time.Second, 5*time.Millisecond)
	assert.Equal(t, want, first.snapshot())
	assert.Equal(t, want, second.snapshot())
}

func TestBroadcastRemovedSubscriberGetsNothing(t *testing.T) {
	b := channel.NewBroadcast[int]()
	defer b.Close()

	removed := &recorder[int]{}
	kept := &recorder[int]{}
	handle := b.OnReceiveNonBlocking(func(v int) error { removed.add(v); return nil })
	b.OnReceiveNonBlocking(func(v int) error { kept.add(v); return nil }).Persist()

	handle.Close()
	require.NoError(t, b.Send(1))

	require.Eventually(t, func() bool { return kept.len() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Zero(t, removed.len(), "no delivery to a previously removed subscriber")
	assert.Equal(t, 1, b.SubscriberCount())
}

func TestBroadcastSubscriberDisconnectLeavesOthersRunning(t *testing.T) {
	b := channel.NewBroadcast[int]()
	defer b.Close()

	quitter := &recorder[int]{}
	stayer := &recorder[int]{}
	b.OnReceiveNonBlocking(func(v int) error {
		quitter.add(v)
		return channel.ErrCallbackDisconnected
	}).Persist()
	b.OnReceiveNonBlocking(func(v int) error { stayer.add(v); return nil }).Persist()

	require.NoError(t, b.Send(1))
	require.NoError(t, b.Send(2))

	require.Eventually(t, func() bool { return stayer.len() == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []int{1}, quitter.snapshot(), "the disconnecting subscriber saw only the first value")
	assert.Equal(t, []int{1, 2}, stayer.snapshot())
	assert.Equal(t, 1, b.SubscriberCount())
}

func TestBroadcasterSendWithoutSubscribersDisconnects(t *testing.T) {
	b := channel.NewBroadcast[int]()
	bc := b.Broadcaster()
	defer bc.Close()

	// Dropping the registration side with no subscribers makes sends
	// fail loudly instead of silently dropping values.
	b.Close()
	assert.ErrorIs(t, bc.Send(1), channel.ErrDisconnected)
}

func TestBroadcasterKeepsSendingAfterChannelClose(t *testing.T) {
	b := channel.NewBroadcast[int]()
	rec := &recorder[int]{}
	b.OnReceiveNonBlocking(func(v int) error { rec.add(v); return nil }).Persist()

	bc := b.Broadcaster()
	defer bc.Close()
	b.Close()

	require.NoError(t, bc.Send(1))
	require.Eventually(t, func() bool { return rec.len() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []int{1}, rec.snapshot())
}

func TestBroadcastValueQueuedBeforeFirstSubscriber(t *testing.T) {
	b := channel.NewBroadcast[int]()
	defer b.Close()

	require.NoError(t, b.Send(1))

	rec := &recorder[int]{}
	b.OnReceiveNonBlocking(func(v int) error { rec.add(v); return nil }).Persist()

	require.Eventually(t, func() bool { return rec.len() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []int{1}, rec.snapshot())
}

func TestBroadcastBlockingSubscriberGatesNextValue(t *testing.T) {
	b := channel.NewBroadcast[int]()
	defer b.Close()

	fast := &recorder[int]{}
	slow := &recorder[int]{}
	gate := make(chan struct{})

	b.OnReceiveNonBlocking(func(v int) error { fast.add(v); return nil }).Persist()
	b.OnReceive(func(v int) error {
		slow.add(v)
		if v == 1 {
			<-gate
		}
		return nil
	}).Persist()

	require.NoError(t, b.Send(1))
	require.NoError(t, b.Send(2))

	// Value 1 reached both; value 2 must wait for the slow subscriber to
	// finish value 1 before anyone sees it.
	require.Eventually(t, func() bool { return fast.len() == 1 && slow.len() == 1 },
		2*time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 1, fast.len(), "value 2 leaked past an undelivered value 1")

	close(gate)
	require.Eventually(t, func() bool { return fast.len() == 2 && slow.len() == 2 },
		2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []int{1, 2}, fast.snapshot())
	assert.Equal(t, []int{1, 2}, slow.snapshot())
}

func TestBroadcastAsyncSubscriberGatesNextValue(t *testing.T) {
	b := channel.NewBroadcast[int]()
	defer b.Close()

	rec := &recorder[int]{}
	var mu sync.Mutex
	var futures []*manualFuture
	b.OnReceiveAsync(func(v int) future.ErrorFuture {
		rec.add(v)
		f := &manualFuture{}
		mu.Lock()
		futures = append(futures, f)
		mu.Unlock()
		return f
	}).Persist()

	require.NoError(t, b.Send(1))
	require.NoError(t, b.Send(2))

	require.Eventually(t, func() bool { return rec.len() == 1 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 1, rec.len())

	mu.Lock()
	futures[0].complete(nil)
	mu.Unlock()

	require.Eventually(t, func() bool { return rec.len() == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []int{1, 2}, rec.snapshot())

	mu.Lock()
	futures[1].complete(nil)
	mu.Unlock()
}

func TestBroadcastSubscriberAddedMidStream(t *testing.T) {
	b := channel.NewBroadcast[int]()
	defer b.Close()

	early := &recorder[int]{}
	b.OnReceiveNonBlocking(func(v int) error { early.add(v); return nil }).Persist()

	require.NoError(t, b.Send(1))
	require.Eventually(t, func() bool { return early.len() == 1 }, 2*time.Second, 5*time.Millisecond)

	late := &recorder[int]{}
	b.OnReceiveNonBlocking(func(v int) error { late.add(v); return nil }).Persist()

	require.NoError(t, b.Send(2))
	require.Eventually(t, func() bool { return early.len() == 2 && late.len() == 1 },
		2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []int{2}, late.snapshot(), "a late subscriber sees only later values")
}
