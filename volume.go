package pagecache

import (
	"sync"

	"github.com/google/uuid"
)

// Volume is one per backing device: a block size, a logical length, and
// a sticky write-error latch shared by every node on the volume.
type Volume struct {
	ID uuid.UUID

	cache      *Cache
	blockOrder uint
	length     uint64

	mu       sync.Mutex
	writeErr Status

	nodesMu sync.Mutex
	nodes   []*Node
}

// AllocateVolume is allocate_volume: blockOrder must be <= the cache's
// page order.
func AllocateVolume(c *Cache, length uint64, blockOrder uint) (*Volume, Status) {
	if blockOrder > c.pageOrder {
		return nil, Errorf("block order %d exceeds page order %d", blockOrder, c.pageOrder)
	}
	v := &Volume{
		ID:         uuid.New(),
		cache:      c,
		blockOrder: blockOrder,
		length:     length,
		writeErr:   OK(),
	}
	return v, OK()
}

// BlockSize returns the volume's block size in bytes.
func (v *Volume) BlockSize() uint64 { return uint64(1) << v.blockOrder }

// Length returns the volume's logical length in bytes.
func (v *Volume) Length() uint64 { return v.length }

// writeError returns the sticky write-error latch's current value.
func (v *Volume) writeError() Status {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.writeErr
}

// latchWriteError sets the sticky latch if it is not already set — once
// non-OK, a volume's writes keep failing with the same status until the
// (out-of-scope) clearing protocol runs. See DESIGN.md Open Question (b).
func (v *Volume) latchWriteError(s Status) {
	if s.IsOK() {
		return
	}
	v.mu.Lock()
	if v.writeErr.IsOK() {
		v.writeErr = s
	}
	v.mu.Unlock()
}

func (v *Volume) addNode(n *Node) {
	v.nodesMu.Lock()
	v.nodes = append(v.nodes, n)
	v.nodesMu.Unlock()
}

// Nodes returns the volume's nodes in allocation order.
func (v *Volume) Nodes() []*Node {
	v.nodesMu.Lock()
	defer v.nodesMu.Unlock()
	out := make([]*Node, len(v.nodes))
	copy(out, v.nodes)
	return out
}
