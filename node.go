package pagecache

import (
	"sync"

	"github.com/google/uuid"
)

// Node is one per file or file-like object: a rank-balanced ordered tree
// of pages keyed by page index, a per-node lock protecting that tree, a
// logical length, and the two collaborator hooks that perform real block
// I/O.
type Node struct {
	ID uuid.UUID

	volume *Volume

	pagesLock sync.Mutex // pages_lock; acquired before the cache's stateLock
	pages     *pageTree
	length    uint64

	fsRead  IOFunc
	fsWrite IOFunc // nil in a read-only cache

	reader IOFunc
	writer IOFunc // nil in a read-only cache; see Writer
}

// AllocateNode is allocate_node. fsRead and fsWrite are the filesystem's
// collaborator hooks; fsWrite may be nil only if the cache was built with
// WithReadOnly.
func AllocateNode(v *Volume, fsRead, fsWrite IOFunc) (*Node, Status) {
	if fsRead == nil {
		return nil, Errorf("fsRead collaborator must not be nil")
	}
	if !v.cache.readOnly && fsWrite == nil {
		return nil, Errorf("fsWrite collaborator must not be nil for a writable cache")
	}

	n := &Node{
		ID:      uuid.New(),
		volume:  v,
		pages:   newPageTree(),
		fsRead:  fsRead,
		fsWrite: fsWrite,
	}
	// The reader/writer closures are built once, here, and handed back
	// verbatim by every later call to Reader()/Writer() — the original
	// source builds pn->cache_read and pn->cache_write exactly once, at
	// pagecache_allocate_node time, rather than allocating a fresh
	// closure per call.
	n.reader = func(sg *List, r Range, completion Completion) {
		n.read(sg, r, completion)
	}
	if !v.cache.readOnly {
		n.writer = func(sg *List, r Range, completion Completion) {
			n.write(sg, r, completion)
		}
	}

	v.addNode(n)
	return n, OK()
}

// SetLength sets the node's logical length. The cache owns length;
// callers observe it only through Length.
func SetLength(n *Node, length uint64) {
	n.pagesLock.Lock()
	n.length = length
	n.pagesLock.Unlock()
}

// Length returns the node's current logical length.
func (n *Node) Length() uint64 {
	n.pagesLock.Lock()
	defer n.pagesLock.Unlock()
	return n.length
}

// Reader returns the node's (sg, range, completion) read operation.
func (n *Node) Reader() IOFunc { return n.reader }

// Writer returns the node's (sg, range, completion) write operation, or
// nil if the cache was built with WithReadOnly.
func (n *Node) Writer() IOFunc { return n.writer }

// Volume returns the node's owning volume.
func (n *Node) Volume() *Volume { return n.volume }

// DeallocateNode is pagecache_deallocate_node. The original source
// leaves node destruction intentionally incomplete (a TODO: "we're
// leaking nodes for files that get deleted and log extensions that get
// retired"); see DESIGN.md Open Question (a). DeallocateNode clears the
// node's collaborator hooks, so Reader and Writer return nil afterwards,
// and evicts every NEW or ACTIVE page. Pages in any other state stay in
// the node's tree. It does not wait for in-flight I/O, and reader or
// writer closures obtained before the call are not invalidated.
func DeallocateNode(n *Node) Status {
	n.pagesLock.Lock()
	n.fsRead = nil
	n.fsWrite = nil
	n.reader = nil
	n.writer = nil
	pages := make([]*Page, 0, n.pages.len())
	collect(n.pages, &pages)
	n.pagesLock.Unlock()

	if len(pages) == 0 {
		return OK()
	}

	c := n.volume.cache
	n.pagesLock.Lock()
	defer n.pagesLock.Unlock()
	c.stateLock.Lock()
	defer c.stateLock.Unlock()
	for _, p := range pages {
		switch p.State() {
		case pageNew, pageActive:
			c.changeStateLocked(p, pageEvicted)
		case pageReading, pageWriting, pageAlloc, pageDirty:
			// The page is left in the node's tree and on whatever list it
			// is on; an in-flight read or write moves it on as usual when
			// it completes.
			continue
		default:
			continue
		}
		n.pages.remove(p)
		p.refcount.Release()
	}
	return OK()
}

// collect walks t in order, appending every page to out. Used only by
// DeallocateNode, which needs a snapshot to iterate while the tree itself
// is being mutated.
func collect(t *pageTree, out *[]*Page) {
	var walk func(n *treeNode)
	walk = func(n *treeNode) {
		if n == nil {
			return
		}
		walk(n.left)
		*out = append(*out, n.page)
		walk(n.right)
	}
	walk(t.root)
}
