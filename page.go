package pagecache

import (
	"sync/atomic"
	"unsafe"

	"github.com/ryogrid/pagecache/sgio"
)

// pageState is one of the eight states a Page can occupy, per §3 of the
// design. The zero value is pageFree so a zero-initialized treeNode key
// comparison (which only inspects the index bits) never mistakes an
// uninitialized word for a meaningful state.
type pageState uint8

const (
	pageFree pageState = iota
	pageAlloc
	pageReading
	pageNew
	pageActive
	pageWriting
	pageDirty
	pageEvicted
)

func (s pageState) String() string {
	switch s {
	case pageFree:
		return "FREE"
	case pageAlloc:
		return "ALLOC"
	case pageReading:
		return "READING"
	case pageNew:
		return "NEW"
	case pageActive:
		return "ACTIVE"
	case pageWriting:
		return "WRITING"
	case pageDirty:
		return "DIRTY"
	case pageEvicted:
		return "EVICTED"
	default:
		return "UNKNOWN"
	}
}

// pageStateShift packs (state, index) into a single machine word: the low
// bits hold the index, the high bits hold the state, written with a
// single atomic store so that a reader racing a transition never observes
// a torn (state, index) pair — though per §4.1, readers outside
// state_lock must not otherwise rely on the word's freshness.
const pageStateShift = 56

const pageIndexMask = (uint64(1) << pageStateShift) - 1

// Page is the unit cached: a fixed-size window of a Node's logical
// address space, backed by an owned, refcounted buffer.
type Page struct {
	node *Node // weak back-reference: relation only, never extends Node's lifetime

	stateOffset atomic.Uint64 // packed (state, index); see pageStateShift

	kvirt []byte // owned buffer of size 1<<pageOrder; released when refcount hits zero
	phys  uintptr

	refcount *sgio.Refcount

	// writeCount and completions are guarded by the owning Cache's
	// stateLock, not by any per-page lock — per §5 there is exactly one
	// state_lock, process-wide.
	writeCount  int
	completions []sgio.Completion

	listElem *pagelistElem // nil unless linked into exactly one pagelist
}

// State returns the page's current lifecycle state.
func (p *Page) State() pageState {
	return pageState(p.stateOffset.Load() >> pageStateShift)
}

// Index returns the page's index within its node.
func (p *Page) Index() uint64 {
	return p.stateOffset.Load() & pageIndexMask
}

func (p *Page) setStateOffset(state pageState, index uint64) {
	p.stateOffset.Store(uint64(state)<<pageStateShift | index)
}

// Data returns the page's backing buffer. Callers must hold a reservation
// (via the refcount) for as long as they retain the slice.
func (p *Page) Data() []byte { return p.kvirt }

// byteRange returns the page's byte range within its node's address space.
func (p *Page) byteRange(pageOrder uint) Range {
	start := p.Index() << pageOrder
	return Range{Start: start, End: start + (uint64(1) << pageOrder)}
}

// allocatePage reserves a page-sized buffer from the cache's contiguous
// allocator, creates a Page descriptor in state ALLOC, and inserts it
// into the node's tree. It does not place the page on any pagelist — per
// §3's lifecycle, ALLOC pages are tree-only. Caller must hold the node's
// pages_lock.
func (c *Cache) allocatePage(n *Node, index uint64) (*Page, Status) {
	buf, err := c.contiguous.Allocate(1 << c.pageOrder)
	if err != nil {
		return nil, Errorf("failed to allocate page buffer: %v", err)
	}

	p := &Page{node: n, kvirt: buf}
	if len(buf) > 0 {
		p.phys = uintptr(unsafe.Pointer(&buf[0]))
	}
	p.setStateOffset(pageAlloc, index)
	p.refcount = sgio.NewRefcount(1, func() { c.freePage(p) })

	n.pages.insert(p)
	atomic.AddInt64(&c.totalPages, 1)
	return p, OK()
}

// freePage is the refcount-zero callback: state must already be EVICTED
// (the caller transitioned it and unlinked it from tree and pagelist
// before releasing the cache's own reference).
func (c *Cache) freePage(p *Page) {
	if p.State() != pageEvicted {
		panic("pagecache: page buffer freed while not EVICTED")
	}
	c.contiguous.Free(p.kvirt)
	left := atomic.AddInt64(&c.totalPages, -1)
	if left < 0 {
		panic("pagecache: total page count went negative")
	}
	c.logger.Debug().Uint64("page", p.Index()).Int64("total_pages", left).Msg("page buffer released")
}
