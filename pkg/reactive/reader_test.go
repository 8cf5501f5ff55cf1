package reactive_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-drift/reactive/pkg/reactive"
)

func TestReaderGetReturnsNextValue(t *testing.T) {
	d := reactive.NewDynamic("")
	defer d.Close()

	r := d.Reader()
	defer r.Close()

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = d.Set("hello")
	}()

	v, ok := r.Get()
	assert.True(t, ok)
	assert.Equal(t, "hello", v)
}

func TestReaderGetImmediateWhenStale(t *testing.T) {
	d := reactive.NewDynamic(0)
	defer d.Close()

	r := d.Reader()
	defer r.Close()

	require.NoError(t, d.Set(1))

	done := make(chan struct{})
	var v int
	var ok bool
	go func() {
		defer close(done)
		v, ok = r.Get()
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Get should not block when the cursor is already stale")
	}
	assert.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestIndependentCursors(t *testing.T) {
	d := reactive.NewDynamic("")
	defer d.Close()

	a := d.Reader()
	defer a.Close()
	b := d.Reader()
	defer b.Close()

	require.NoError(t, d.Set("a"))
	got, ok := a.Get()
	require.True(t, ok)
	require.Equal(t, "a", got)

	require.NoError(t, d.Set("b"))

	// B never read "a"; it observes "b" directly.
	got, ok = b.Get()
	require.True(t, ok)
	assert.Equal(t, "b", got)
}

func TestSlowReaderSkipsIntermediates(t *testing.T) {
	d := reactive.NewDynamic(0)
	defer d.Close()

	r := d.Reader()
	defer r.Close()

	for i := 1; i <= 5; i++ {
		require.NoError(t, d.Set(i))
	}
	v, ok := r.Get()
	assert.True(t, ok)
	assert.Equal(t, 5, v, "only the latest value is guaranteed visible")
}

func TestBlockUntilUpdatedFalseWhenOrphaned(t *testing.T) {
	d := reactive.NewDynamic(0)
	r := d.Reader()
	defer r.Close()

	d.Close()
	assert.False(t, r.BlockUntilUpdated(), "an orphaned value terminates consumer loops")
}

func TestCloseWakesBlockedReader(t *testing.T) {
	d := reactive.NewDynamic(0)
	r := d.Reader()
	defer r.Close()

	result := make(chan bool, 1)
	go func() {
		_, ok := r.Get()
		result <- ok
	}()

	// Give the reader time to block, then orphan the cell.
	time.Sleep(20 * time.Millisecond)
	d.Close()

	select {
	case ok := <-result:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("blocked reader was not woken by teardown")
	}
}

func TestOrphanedReaderStillSeesFinalValue(t *testing.T) {
	d := reactive.NewDynamic(0)
	r := d.Reader()
	defer r.Close()

	require.NoError(t, d.Set(7))
	d.Close()

	// The unobserved generation is still delivered before abandonment.
	v, ok := r.Get()
	assert.True(t, ok)
	assert.Equal(t, 7, v)

	// Cursor is now current and the cell is orphaned.
	_, ok = r.Get()
	assert.False(t, ok)
}

func TestReaderClone(t *testing.T) {
	d := reactive.NewDynamic(0)
	defer d.Close()

	a := d.Reader()
	defer a.Close()
	require.NoError(t, d.Set(1))

	got, ok := a.Get()
	require.True(t, ok)
	require.Equal(t, 1, got)

	// The clone starts at A's cursor, so it blocks until the next change.
	b := a.Clone()
	defer b.Close()
	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = d.Set(2)
	}()
	got, ok = b.Get()
	assert.True(t, ok)
	assert.Equal(t, 2, got)
}

func TestReaderPeek(t *testing.T) {
	d := reactive.NewDynamic(5)
	defer d.Close()

	r := d.Reader()
	defer r.Close()
	assert.Equal(t, 5, r.Peek(), "Peek must not block on an unchanged cell")
}
