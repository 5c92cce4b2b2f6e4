package pagecache

import (
	"math/bits"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Cache is the process-wide singleton described in §3: it owns the
// global pagelists, the state lock protecting all page-state transitions,
// and the zero page used to back reads past end-of-node.
type Cache struct {
	stateLock sync.Mutex // protects pagelists, page state, completion fan-out bookkeeping

	freeList, newList, activeList, writingList *pagelist

	totalPages int64 // atomic; see invariant 5

	pageOrder uint
	zeroPage  []byte

	general    Allocator
	contiguous Allocator

	logger zerolog.Logger

	readOnly bool
	dispatch completionDispatcher
}

// Option configures a Cache at construction time.
type Option func(*Cache)

// WithLogger overrides the cache's zerolog.Logger (default: the global
// logger from github.com/rs/zerolog/log, matching the package-level
// logging convention used elsewhere in the retrieved corpus).
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Cache) { c.logger = logger }
}

// WithReadOnly builds a cache whose nodes never expose a writer — the
// runtime equivalent of the PAGECACHE_READ_ONLY build used for the
// boot-time loader in the original source.
func WithReadOnly() Option {
	return func(c *Cache) { c.readOnly = true }
}

// WithDeferredCompletions selects the deferred completion fan-out mode
// (§4.6): completions are queued to a bounded channel of the given
// capacity and drained by a single service goroutine, rather than
// invoked synchronously on the completing goroutine. capacity must be
// sized for worst-case concurrent I/O; exhausting it is a hard failure.
func WithDeferredCompletions(capacity int) Option {
	return func(c *Cache) {
		c.dispatch = newDeferredDispatcher(capacity, c.logger)
	}
}

// NewCache is allocate_cache: pageSizeBytes must be a power of two. The
// cache stores page_order = log2(pageSizeBytes).
func NewCache(general, contiguous Allocator, pageSizeBytes int, opts ...Option) (*Cache, error) {
	if pageSizeBytes <= 0 || pageSizeBytes&(pageSizeBytes-1) != 0 {
		return nil, Errorf("page size %d is not a power of two", pageSizeBytes).Unwrap()
	}
	if general == nil {
		general = NewDefaultAllocator()
	}
	if contiguous == nil {
		contiguous = NewDefaultAllocator()
	}

	c := &Cache{
		freeList:    newPagelist(),
		newList:     newPagelist(),
		activeList:  newPagelist(),
		writingList: newPagelist(),
		pageOrder:   uint(bits.TrailingZeros(uint(pageSizeBytes))),
		general:     general,
		contiguous:  contiguous,
		logger:      log.Logger,
	}
	c.dispatch = inlineDispatcher{}

	for _, opt := range opts {
		opt(c)
	}

	zp, err := contiguous.Allocate(pageSizeBytes)
	if err != nil {
		return nil, Errorf("failed to allocate zero page: %v", err).Unwrap()
	}
	c.zeroPage = zp

	return c, nil
}

// ZeroPage returns the cache's preallocated, all-zero page, used to back
// reads past end-of-node.
func (c *Cache) ZeroPage() []byte { return c.zeroPage }

// PageOrder returns log2 of the cache's page size.
func (c *Cache) PageOrder() uint { return c.pageOrder }

// PageSize returns the cache's page size in bytes.
func (c *Cache) PageSize() uint64 { return uint64(1) << c.pageOrder }

// TotalPages returns the number of pages currently resident across every
// node in every volume backed by this cache.
func (c *Cache) TotalPages() int64 { return atomic.LoadInt64(&c.totalPages) }

// queueCompletionsLocked drains p's completion list and hands it to the
// dispatcher. The caller holds stateLock; it is released while the
// completions are dispatched and re-acquired before returning.
func (c *Cache) queueCompletionsLocked(p *Page, s Status) {
	if len(p.completions) == 0 {
		return
	}
	cs := p.completions
	p.completions = nil
	c.stateLock.Unlock()
	c.dispatch.dispatch(cs, s)
	c.stateLock.Lock()
}

// Drain is the caller-driven reclamation entry point: it converts bytes
// to a page count (rounding up) and evicts from new, then — if that
// doesn't meet the target — from active, finally rebalancing the two
// lists. It returns the number of bytes actually evicted.
//
// Drain removes evicted pages from their node's tree without holding that
// node's pagesLock: it walks the global lists under stateLock alone, and
// stateLock is always acquired after pagesLock elsewhere in this package,
// so taking pagesLock here too (in the other order) would risk deadlock
// against a concurrent read or write on the same node. See DESIGN.md's
// Open Question on drain's cross-node locking for why this races with a
// concurrent tree lookup on the evicted page's node exactly as upstream
// does, and is left unresolved rather than papered over.
func (c *Cache) Drain(drainBytes uint64) uint64 {
	pages := (drainBytes + c.PageSize() - 1) >> c.pageOrder

	c.stateLock.Lock()
	evicted := c.evictPagesLocked(pages)
	c.stateLock.Unlock()

	return evicted << c.pageOrder
}

func (c *Cache) evictPagesLocked(pages uint64) uint64 {
	evicted := c.evictFromListLocked(c.newList, pages)
	if evicted < pages {
		// More aggressive here: evict even in-use pages (refcount > 1)
		// from active, since new alone couldn't meet the target.
		evicted += c.evictFromListLocked(c.activeList, pages-evicted)
	}
	c.balanceNewAndActiveLocked()
	return evicted
}

func (c *Cache) evictFromListLocked(pl *pagelist, pages uint64) uint64 {
	var evicted uint64
	pl.forEachUntil(func(p *Page) bool {
		if evicted >= pages {
			return false
		}
		c.logger.Debug().
			Uint64("page", p.Index()).
			Str("state", p.State().String()).
			Msg("evicting page")
		c.changeStateLocked(p, pageEvicted)
		p.node.pages.remove(p)
		p.refcount.Release() // the cache's own reference; buffer survives until the last other holder releases
		evicted++
		return true
	})
	return evicted
}

// balanceNewAndActiveLocked is the only mechanism that demotes pages from
// active back to new: it walks active from the head, demoting pages held
// only by the cache (refcount == 1) until the two lists are within one
// page of balanced.
func (c *Cache) balanceNewAndActiveLocked() {
	dp := (int64(c.activeList.len()) - int64(c.newList.len())) / 2
	c.activeList.forEachUntil(func(p *Page) bool {
		if dp <= 0 {
			return false
		}
		if p.refcount.Count() == 1 {
			c.changeStateLocked(p, pageNew)
			dp--
		}
		return true
	})
}
