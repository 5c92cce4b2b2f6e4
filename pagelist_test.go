package pagecache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPagelistEnqueueRemoveOrder(t *testing.T) {
	pl := newPagelist()
	a, b, c := pageWithIndex(1), pageWithIndex(2), pageWithIndex(3)
	pl.enqueue(a)
	pl.enqueue(b)
	pl.enqueue(c)
	require.Equal(t, 3, pl.len())
	assert.Equal(t, a, pl.front())
	assert.Equal(t, c, pl.back())

	pl.remove(b)
	assert.Equal(t, 2, pl.len())
	assert.Equal(t, a, pl.front())
	assert.Equal(t, c, pl.back())
}

func TestPagelistTouchMovesToTail(t *testing.T) {
	pl := newPagelist()
	a, b := pageWithIndex(1), pageWithIndex(2)
	pl.enqueue(a)
	pl.enqueue(b)
	pl.touch(a)
	assert.Equal(t, b, pl.front())
	assert.Equal(t, a, pl.back())
}

func TestPagelistMove(t *testing.T) {
	src, dst := newPagelist(), newPagelist()
	a := pageWithIndex(1)
	src.enqueue(a)
	move(dst, src, a)
	assert.Equal(t, 0, src.len())
	assert.Equal(t, 1, dst.len())
	assert.Equal(t, a, dst.front())
}

func TestPagelistEnqueueAlreadyLinkedPanics(t *testing.T) {
	pl := newPagelist()
	a := pageWithIndex(1)
	pl.enqueue(a)
	assert.Panics(t, func() { pl.enqueue(a) })
}

func TestPagelistForEachUntilToleratesRemoval(t *testing.T) {
	pl := newPagelist()
	pages := []*Page{pageWithIndex(1), pageWithIndex(2), pageWithIndex(3)}
	for _, p := range pages {
		pl.enqueue(p)
	}
	var seen []uint64
	pl.forEachUntil(func(p *Page) bool {
		seen = append(seen, p.Index())
		pl.remove(p)
		return true
	})
	assert.Equal(t, []uint64{1, 2, 3}, seen)
	assert.Equal(t, 0, pl.len())
}
