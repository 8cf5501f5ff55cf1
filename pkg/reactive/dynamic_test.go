package reactive_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-drift/reactive/pkg/reactive"
)

func TestGetSet(t *testing.T) {
	d := reactive.NewDynamic(0)
	defer d.Close()

	require.Equal(t, 0, d.Get())
	require.NoError(t, d.Set(42))
	require.Equal(t, 42, d.Get())
}

func TestGenerationAdvancesPerMutation(t *testing.T) {
	d := reactive.NewDynamic("x")
	defer d.Close()

	g0 := d.Generation()
	require.NoError(t, d.Set("y"))
	g1 := d.Generation()
	assert.Equal(t, g0.Next(), g1)

	// No mutation in between: generations compare equal.
	assert.Equal(t, d.Generation(), d.Generation())

	require.NoError(t, d.Set("z"))
	assert.Equal(t, g1.Next(), d.Generation())
}

func TestReplaceReturnsPrevious(t *testing.T) {
	d := reactive.NewDynamic("old")
	defer d.Close()

	prev, err := d.Replace("new")
	require.NoError(t, err)
	assert.Equal(t, "old", prev)
	assert.Equal(t, "new", d.Get())
}

func TestWithObservesWithoutMutating(t *testing.T) {
	d := reactive.NewDynamic([]int{1, 2, 3})
	defer d.Close()

	g := d.Generation()
	var seen int
	d.With(func(value *[]int) {
		seen = len(*value)
	})
	assert.Equal(t, 3, seen)
	assert.Equal(t, g, d.Generation(), "With must not advance the generation")
}

func TestOnChangeRunsInRegistrationOrder(t *testing.T) {
	d := reactive.NewDynamic(0)
	defer d.Close()

	var order []string
	d.OnChange(func(v int) error {
		order = append(order, "first")
		return nil
	}).Persist()
	d.OnChange(func(v int) error {
		order = append(order, "second")
		return nil
	}).Persist()

	require.NoError(t, d.Set(1))
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestOnChangeObservesValueAfterChange(t *testing.T) {
	d := reactive.NewDynamic(0)
	defer d.Close()

	var observed []int
	d.OnChange(func(v int) error {
		observed = append(observed, v)
		return nil
	}).Persist()

	require.NoError(t, d.Set(1))
	require.NoError(t, d.Set(2))
	assert.Equal(t, []int{1, 2}, observed)
}

func TestOnChangeDisconnectRunsOnce(t *testing.T) {
	d := reactive.NewDynamic(0)
	defer d.Close()

	calls := 0
	d.OnChange(func(v int) error {
		calls++
		return reactive.ErrCallbackDisconnected
	}).Persist()

	require.NoError(t, d.Set(1))
	require.NoError(t, d.Set(2))
	require.NoError(t, d.Set(3))
	assert.Equal(t, 1, calls, "a disconnected callback must never run again")
}

func TestCallbackHandleClose(t *testing.T) {
	d := reactive.NewDynamic(0)
	defer d.Close()

	calls := 0
	handle := d.OnChange(func(v int) error {
		calls++
		return nil
	})

	require.NoError(t, d.Set(1))
	handle.Close()
	require.NoError(t, d.Set(2))
	assert.Equal(t, 1, calls)
}

func TestCallbackHandlePersist(t *testing.T) {
	d := reactive.NewDynamic(0)
	defer d.Close()

	calls := 0
	handle := d.OnChange(func(v int) error {
		calls++
		return nil
	})
	handle.Persist()
	handle.Close()

	require.NoError(t, d.Set(1))
	assert.Equal(t, 1, calls, "a persisted callback survives its handle")
}

func TestMutateFromOwnCallbackReturnsDeadlock(t *testing.T) {
	d := reactive.NewDynamic(0)
	defer d.Close()

	var inner error
	d.OnChange(func(v int) error {
		inner = d.Set(v + 1)
		return nil
	}).Persist()

	done := make(chan error, 1)
	go func() {
		done <- d.Set(1)
	}()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("reentrant mutation hung instead of failing")
	}
	assert.ErrorIs(t, inner, reactive.ErrDeadlock)
	assert.Equal(t, 1, d.Get(), "the reentrant mutation must not apply")
}

func TestMutateFromOtherGoroutineStillWorksDuringDispatch(t *testing.T) {
	d := reactive.NewDynamic(0)
	defer d.Close()

	entered := make(chan struct{})
	release := make(chan struct{})
	d.OnChange(func(v int) error {
		if v == 1 {
			close(entered)
			<-release
		}
		return nil
	}).Persist()

	go func() {
		_ = d.Set(1)
	}()
	<-entered

	// A different goroutine mutating while callbacks run must block on
	// the lock, not get ErrDeadlock.
	result := make(chan error, 1)
	go func() {
		result <- d.Set(2)
	}()
	select {
	case err := <-result:
		t.Fatalf("concurrent mutation finished while the lock was held: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	select {
	case err := <-result:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("concurrent mutation never completed")
	}
}

func TestForEachMonotonicVisibility(t *testing.T) {
	d := reactive.NewDynamic(0)
	defer d.Close()

	var mu sync.Mutex
	var observed []int
	d.ForEach(func(v int) error {
		mu.Lock()
		observed = append(observed, v)
		mu.Unlock()
		return nil
	}).Persist()

	require.NoError(t, d.Set(1))
	require.NoError(t, d.Set(2))
	require.NoError(t, d.Set(3))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(observed) > 0 && observed[len(observed)-1] == 3
	}, 2*time.Second, 5*time.Millisecond, "the latest value must become visible")

	mu.Lock()
	defer mu.Unlock()
	// Coalescing may skip intermediates but never reorders.
	for i := 1; i < len(observed); i++ {
		assert.Less(t, observed[i-1], observed[i], "deliveries out of order: %v", observed)
	}
}

func TestForEachDisconnectRunsOnce(t *testing.T) {
	d := reactive.NewDynamic(0)
	defer d.Close()

	var mu sync.Mutex
	calls := 0
	d.ForEach(func(v int) error {
		mu.Lock()
		calls++
		mu.Unlock()
		return reactive.ErrCallbackDisconnected
	}).Persist()

	require.NoError(t, d.Set(1))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls == 1
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, d.Set(2))
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls)
}

func TestCloneSharesCell(t *testing.T) {
	d := reactive.NewDynamic(1)
	c := d.Clone()
	require.NoError(t, c.Set(2))
	assert.Equal(t, 2, d.Get())

	// Closing one owner leaves the cell alive for the other.
	d.Close()
	require.NoError(t, c.Set(3))
	assert.Equal(t, 3, c.Get())
	c.Close()
}

func TestConcurrentMutations(t *testing.T) {
	d := reactive.NewDynamic(0)
	defer d.Close()

	const goroutines = 8
	const perGoroutine = 200
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				_ = d.Mutate(func(value *int) { *value++ })
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, goroutines*perGoroutine, d.Get())
}

func TestForEachHandleCloseDuringMutations(t *testing.T) {
	d := reactive.NewDynamic(0)
	defer d.Close()

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			_ = d.Set(i)
		}
	}()

	// Churn observer registration while mutations dispatch on the
	// executor; handle Close must be safe against in-flight delivery.
	for i := 0; i < 200; i++ {
		h := d.ForEach(func(int) error { return nil })
		h.Close()
	}
	close(stop)
	wg.Wait()
}
