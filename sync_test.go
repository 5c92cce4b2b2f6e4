package pagecache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncVolumeCompletesImmediatelyWhenIdle(t *testing.T) {
	c := newTestCache(t, 4096)
	v, s := AllocateVolume(c, 1<<20, 9)
	require.True(t, s.IsOK())

	done := make(chan Status, 1)
	SyncVolume(v, func(s Status) { done <- s })
	require.True(t, (<-done).IsOK())
}

func TestSyncNodeWaitsForPendingWrite(t *testing.T) {
	c := newTestCache(t, 4096)
	v, s := AllocateVolume(c, 1<<20, 9)
	require.True(t, s.IsOK())

	blockWrite := make(chan struct{})
	n, s := AllocateNode(v, noopRead, func(sg *List, r Range, completion Completion) {
		<-blockWrite
		completion(OK())
	})
	require.True(t, s.IsOK())

	writeDone := make(chan Status, 1)
	go func() {
		writeDone <- doWrite(t, n, 0, []byte{1, 2, 3, 4})
	}()

	// Give the write a chance to reach WRITING before syncing.
	waitForState(t, n, 0, pageWriting)

	syncDone := make(chan Status, 1)
	SyncNode(n, func(s Status) { syncDone <- s })

	select {
	case <-syncDone:
		t.Fatal("sync completed before the pending write")
	default:
	}

	close(blockWrite)
	require.True(t, (<-writeDone).IsOK())
	assert.True(t, (<-syncDone).IsOK())
}

func waitForState(t *testing.T, n *Node, index uint64, want pageState) {
	t.Helper()
	for i := 0; i < 10000; i++ {
		n.pagesLock.Lock()
		p := n.pages.get(index)
		n.pagesLock.Unlock()
		if p != nil && p.State() == want {
			return
		}
	}
	t.Fatalf("page %d never reached state %s", index, want)
}
