package pagecache

// pagelist is a doubly linked list of pages in a given lifecycle phase,
// plus a count — the teacher's hash-chained latch table links slots the
// same way (a slot is spliced onto exactly one hash bucket's chain at a
// time); a pagelist links a page onto exactly one of new/active/writing/
// free at a time, per invariant 2.
type pagelist struct {
	head, tail *pagelistElem
	count      int
}

// pagelistElem is the intrusive link embedded (by pointer) in a Page.
// Using an explicit element rather than container/list.Element keeps the
// back-pointer to the owning Page untyped-assertion-free.
type pagelistElem struct {
	page       *Page
	prev, next *pagelistElem
	owner      *pagelist
}

func newPagelist() *pagelist {
	return &pagelist{}
}

func (pl *pagelist) len() int { return pl.count }

// enqueue appends p to the tail of pl. p must not currently be linked.
func (pl *pagelist) enqueue(p *Page) {
	if p.listElem != nil {
		panic("pagecache: page already linked into a pagelist")
	}
	e := &pagelistElem{page: p, owner: pl}
	if pl.tail == nil {
		pl.head, pl.tail = e, e
	} else {
		e.prev = pl.tail
		pl.tail.next = e
		pl.tail = e
	}
	p.listElem = e
	pl.count++
}

// remove unlinks p from pl. p must currently be linked into pl.
func (pl *pagelist) remove(p *Page) {
	e := p.listElem
	if e == nil || e.owner != pl {
		panic("pagecache: page not linked into expected pagelist")
	}
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		pl.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		pl.tail = e.prev
	}
	p.listElem = nil
	pl.count--
}

// touch moves p, already linked into pl, to the tail (LRU refresh).
func (pl *pagelist) touch(p *Page) {
	pl.remove(p)
	pl.enqueue(p)
}

// move relocates p from src to dst, appending it at dst's tail.
func move(dst, src *pagelist, p *Page) {
	src.remove(p)
	dst.enqueue(p)
}

// front returns the page at the head of pl, or nil if pl is empty.
func (pl *pagelist) front() *Page {
	if pl.head == nil {
		return nil
	}
	return pl.head.page
}

// back returns the page at the tail of pl, or nil if pl is empty.
func (pl *pagelist) back() *Page {
	if pl.tail == nil {
		return nil
	}
	return pl.tail.page
}

// forEachUntil walks pl from head to tail, invoking f on each page until
// f returns false or the list is exhausted. It tolerates f removing the
// current page from pl (but not other pages), which eviction relies on.
func (pl *pagelist) forEachUntil(f func(p *Page) bool) {
	e := pl.head
	for e != nil {
		next := e.next
		if !f(e.page) {
			return
		}
		e = next
	}
}
