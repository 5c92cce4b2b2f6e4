package pagecache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doWrite(t *testing.T, n *Node, offset uint64, data []byte) Status {
	t.Helper()
	sg := NewList()
	sg.Add(Buf{Data: data, Refcount: NewRefcount(1, func() {})})
	done := make(chan Status, 1)
	n.Writer()(sg, Range{Start: offset, End: offset + uint64(len(data))}, func(s Status) { done <- s })
	return <-done
}

func TestWriteFullPageThenReadBack(t *testing.T) {
	c := newTestCache(t, 4096)
	v, s := AllocateVolume(c, 1<<20, 9)
	require.True(t, s.IsOK())
	backing := newFakeBackingFile(0)
	n, s := AllocateNode(v, backing.read, backing.write)
	require.True(t, s.IsOK())

	payload := make([]byte, 4096)
	for i := range payload {
		payload[i] = byte(i)
	}
	require.True(t, doWrite(t, n, 0, payload).IsOK())
	assert.EqualValues(t, 4096, n.Length())

	assert.Equal(t, payload, backing.buf[:4096])
}

func TestWriteUnalignedIntoEmptyTailZeroFillsBlockTail(t *testing.T) {
	c := newTestCache(t, 4096)
	v, s := AllocateVolume(c, 1<<20, 9) // block order 9 -> 512-byte blocks
	require.True(t, s.IsOK())
	backing := newFakeBackingFile(0)
	n, s := AllocateNode(v, backing.read, backing.write)
	require.True(t, s.IsOK())

	payload := []byte("hello, pagecache")
	require.True(t, doWrite(t, n, 0, payload).IsOK())
	assert.EqualValues(t, len(payload), n.Length())
	assert.Equal(t, payload, backing.buf[:len(payload)])

	p := n.pages.get(0)
	require.NotNil(t, p)
	assert.Equal(t, make([]byte, 512-len(payload)), p.Data()[len(payload):512])
}

func TestWriteUnalignedIntoExistingPagePreservesNeighboringBytes(t *testing.T) {
	c := newTestCache(t, 4096)
	v, s := AllocateVolume(c, 1<<20, 9)
	require.True(t, s.IsOK())
	backing := newFakeBackingFile(0)
	n, s := AllocateNode(v, backing.read, backing.write)
	require.True(t, s.IsOK())

	full := make([]byte, 4096)
	for i := range full {
		full[i] = 0xAA
	}
	require.True(t, doWrite(t, n, 0, full).IsOK())

	patch := []byte{1, 2, 3, 4}
	require.True(t, doWrite(t, n, 100, patch).IsOK())

	assert.Equal(t, byte(0xAA), backing.buf[99])
	assert.Equal(t, patch, backing.buf[100:104])
	assert.Equal(t, byte(0xAA), backing.buf[104])
}

func TestConcurrentWritesToSamePageSerializeThroughWriteCount(t *testing.T) {
	c := newTestCache(t, 4096)
	v, s := AllocateVolume(c, 1<<20, 9)
	require.True(t, s.IsOK())
	backing := newFakeBackingFile(0)
	n, s := AllocateNode(v, backing.read, backing.write)
	require.True(t, s.IsOK())

	done := make(chan Status, 2)
	go func() {
		done <- doWrite(t, n, 0, []byte{1, 1, 1, 1})
	}()
	go func() {
		done <- doWrite(t, n, 2000, []byte{2, 2, 2, 2})
	}()
	require.True(t, (<-done).IsOK())
	require.True(t, (<-done).IsOK())

	p := n.pages.get(0)
	require.NotNil(t, p)
	assert.Equal(t, 0, p.writeCount)
}

func TestWriteErrorLatchesAndRejectsFurtherWrites(t *testing.T) {
	c := newTestCache(t, 4096)
	v, s := AllocateVolume(c, 1<<20, 9)
	require.True(t, s.IsOK())
	v.latchWriteError(Errorf("disk full"))

	n, s := AllocateNode(v, noopRead, noopWrite)
	require.True(t, s.IsOK())

	got := doWrite(t, n, 0, []byte{1})
	assert.False(t, got.IsOK())
	assert.Contains(t, got.Error(), "disk full")
}
