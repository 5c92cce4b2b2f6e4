package pagecache

// Allocator is the contract for the two memory pools the design names
// but deliberately leaves external: the "general" allocator (page
// descriptors, merges, completion batches — ordinary heap memory) and the
// "contiguous" allocator (the page-sized buffers backing kvirt, which on
// real hardware must be physically contiguous for DMA). Both are handed
// to NewCache by the caller, the same way the physical page allocator is
// named only as a collaborator in §1's scope. The cache draws page
// buffers and the zero page from the contiguous allocator; it stores the
// general allocator but allocates page descriptors, merges and completion
// batches on the Go heap directly.
type Allocator interface {
	Allocate(size int) ([]byte, error)
	Free(buf []byte)
}

// defaultAllocator is a general-purpose Allocator backed by the Go
// runtime's own heap: it hands out freshly made byte slices and lets the
// garbage collector reclaim them, the same way the teacher's own
// ParentBufMgrDummy "store[s] data in memory only and don't manage memory
// usage" — it exists so the cache is usable without a caller supplying a
// real arena/slab allocator, not as a production memory manager.
type defaultAllocator struct{}

// NewDefaultAllocator returns an Allocator suitable for tests and for
// callers that don't need physically contiguous buffers.
func NewDefaultAllocator() Allocator {
	return defaultAllocator{}
}

func (defaultAllocator) Allocate(size int) ([]byte, error) {
	return make([]byte, size), nil
}

func (defaultAllocator) Free(buf []byte) {
	// Left to the garbage collector; see type doc.
}
