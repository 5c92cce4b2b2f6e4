package pagecache

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryogrid/pagecache/sgio"
)

func TestInlineDispatcherInvokesSynchronously(t *testing.T) {
	var got sgio.Status
	var d inlineDispatcher
	d.dispatch([]sgio.Completion{func(s sgio.Status) { got = s }}, sgio.Errorf("x"))
	assert.False(t, got.IsOK())
}

func TestDeferredDispatcherDrainsAsynchronously(t *testing.T) {
	d := newDeferredDispatcher(8, zerolog.Nop())

	var wg sync.WaitGroup
	wg.Add(3)
	var mu sync.Mutex
	var seen []sgio.Status
	for i := 0; i < 3; i++ {
		d.dispatch([]sgio.Completion{func(s sgio.Status) {
			mu.Lock()
			seen = append(seen, s)
			mu.Unlock()
			wg.Done()
		}}, sgio.OK())
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("deferred completions never drained")
	}
	assert.Len(t, seen, 3)
}

func TestDeferredDispatcherPanicsWhenQueueFull(t *testing.T) {
	d := newDeferredDispatcher(1, zerolog.Nop())
	d.queue <- completionBatch{}
	require.Len(t, d.queue, 1)
	assert.Panics(t, func() {
		d.dispatch([]sgio.Completion{func(sgio.Status) {}}, sgio.OK())
	})
}

func TestNewDeferredDispatcherPanicsOnNonPositiveCapacity(t *testing.T) {
	assert.Panics(t, func() { newDeferredDispatcher(0, zerolog.Nop()) })
}
