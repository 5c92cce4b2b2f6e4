package pagecache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, pageSize int) *Cache {
	c, err := NewCache(nil, nil, pageSize)
	require.NoError(t, err)
	return c
}

func TestNewCacheRejectsNonPowerOfTwo(t *testing.T) {
	_, err := NewCache(nil, nil, 100)
	assert.Error(t, err)
}

func TestNewCachePageOrder(t *testing.T) {
	c := newTestCache(t, 4096)
	assert.EqualValues(t, 12, c.PageOrder())
	assert.EqualValues(t, 4096, c.PageSize())
	assert.Len(t, c.ZeroPage(), 4096)
}

func TestCacheDrainEvictsFromNew(t *testing.T) {
	c := newTestCache(t, 4096)
	v, s := AllocateVolume(c, 1<<20, 9)
	require.True(t, s.IsOK())
	n, s := AllocateNode(v, func(sg *List, r Range, completion Completion) {
		completion(OK())
	}, func(sg *List, r Range, completion Completion) {
		completion(OK())
	})
	require.True(t, s.IsOK())

	for i := uint64(0); i < 4; i++ {
		n.pagesLock.Lock()
		p, s := c.allocatePage(n, i)
		require.True(t, s.IsOK())
		c.stateLock.Lock()
		c.changeStateLocked(p, pageReading)
		c.changeStateLocked(p, pageNew)
		c.stateLock.Unlock()
		n.pagesLock.Unlock()
	}
	require.EqualValues(t, 4, c.TotalPages())

	evicted := c.Drain(2 * c.PageSize())
	assert.EqualValues(t, 2*c.PageSize(), evicted)
	assert.EqualValues(t, 2, c.TotalPages())
}

func TestCacheWithDeferredCompletionsExhaustionPanics(t *testing.T) {
	c, err := NewCache(nil, nil, 4096, WithDeferredCompletions(1))
	require.NoError(t, err)

	d := c.dispatch.(*deferredDispatcher)
	d.queue <- completionBatch{}
	assert.Panics(t, func() {
		c.dispatch.dispatch([]Completion{func(Status) {}}, OK())
	})
}
