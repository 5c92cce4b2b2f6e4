package pagecache

import "github.com/ryogrid/pagecache/sgio"

// write is node.cache_write: §4.4. It extends the node's length if the
// write runs past the current end, prefetches any partial head/tail page
// via the read-modify-write path, then hands off to a two-phase finish
// closure once every prefetch (and any page already mid-read) has settled.
func (n *Node) write(sg *List, q Range, completion Completion) {
	v := n.volume
	if s := v.writeError(); !s.IsOK() {
		completion(s)
		return
	}
	if q.Span() == 0 {
		completion(OK())
		return
	}

	n.pagesLock.Lock()
	if q.End > n.length {
		n.length = q.End
	}
	n.pagesLock.Unlock()

	wf := &writeFinish{n: n, q: q, sg: sg, completion: completion}
	m := newMerge(wf.run)

	c := n.volume.cache
	pageOrder := c.PageOrder()
	pageSize := uint64(1) << pageOrder
	startOffset := q.Start & (pageSize - 1)
	endOffset := q.End & (pageSize - 1)
	rStart := q.Start >> pageOrder
	rEnd := q.End >> pageOrder

	n.pagesLock.Lock()
	if startOffset != 0 {
		n.touchPageByNumLocked(q.Start>>pageOrder, m)
		rStart++
	}
	if endOffset != 0 && q.End < n.length &&
		!((q.Start&^(pageSize-1)) == (q.End&^(pageSize-1)) && startOffset != 0) {
		n.touchPageByNumLocked(q.End>>pageOrder, m)
	}

	p := n.pages.ceil(rStart)
	for p != nil && p.Index() < rEnd {
		c.stateLock.Lock()
		if p.State() == pageReading {
			p.completions = append(p.completions, m.handle())
		}
		c.stateLock.Unlock()
		p = n.pages.next(p)
	}
	n.pagesLock.Unlock()

	m.release(OK())
}

// touchPageByNumLocked looks up (or allocates) the page at index pi and
// runs it through touchOrFillNodeLocked, registering a merge handle for
// any fill or pending read it needs to wait behind. Caller must hold the
// node's pagesLock.
func (n *Node) touchPageByNumLocked(pi uint64, m *merge) {
	p := n.pages.get(pi)
	if p == nil {
		var s Status
		p, s = n.volume.cache.allocatePage(n, pi)
		if !s.IsOK() {
			m.handle()(s)
			return
		}
	}
	n.touchOrFillNodeLocked(p, m)
}

// writeFinish is pagecache_write_sg_finish: a single closure reused across
// two distinct invocations. The first (complete == false) fires once every
// RMW prefetch has settled; it copies the caller's data into page buffers,
// zero-fills any unaligned tail created by extending the node, transitions
// every touched page to WRITING, and issues the aligned write to the
// node's fs_write collaborator — then immediately reports success to the
// original caller, without waiting for that write to land. The second
// invocation (complete == true) is fs_write's own completion: it latches
// any write error onto the volume and retires WRITING back to NEW once
// every page's write_count reaches zero.
type writeFinish struct {
	n          *Node
	q          Range
	sg         *List
	completion Completion
	complete   bool
}

func (wf *writeFinish) run(s Status) {
	if wf.complete {
		wf.phase2(s)
		return
	}
	wf.phase1(s)
}

func (wf *writeFinish) phase1(_ Status) {
	n := wf.n
	c := n.volume.cache
	pageOrder := c.PageOrder()
	pageSize := uint64(1) << pageOrder
	blockOrder := n.volume.blockOrder
	blockSize := uint64(1) << blockOrder
	q := wf.q

	pi := q.Start >> pageOrder
	end := (q.End + pageSize - 1) >> pageOrder
	offset := q.Start & (pageSize - 1)
	blockOffset := q.Start & (blockSize - 1)
	r := Range{Start: q.Start &^ (blockSize - 1), End: q.End}

	var writeSg *List
	if wf.sg != nil {
		writeSg = NewList()
	}
	consumed := 0

	n.pagesLock.Lock()
	p := n.pages.ceil(pi)
	for pi < end {
		if p == nil || p.Index() > pi {
			newPage, s := c.allocatePage(n, pi)
			if !s.IsOK() {
				n.pagesLock.Unlock()
				wf.completion(s)
				return
			}
			p = newPage

			pr := p.byteRange(pageOrder)
			i := pr.Intersect(q)
			tailOffset := i.End & (blockSize - 1)
			if tailOffset != 0 {
				pageOff := i.End & (pageSize - 1)
				length := blockSize - tailOffset
				zero(p.Data()[pageOff : pageOff+length])
			}
		}

		copyLen := minU64(q.End-(pi<<pageOrder), pageSize) - offset
		reqLen := padUp(copyLen+blockOffset, blockSize)

		dst := p.Data()[offset-blockOffset : offset-blockOffset+reqLen]
		if writeSg != nil {
			sgio.CopyAt(p.Data()[offset:offset+copyLen], wf.sg, consumed)
			consumed += int(copyLen)
			p.refcount.Reserve()
			writeSg.Add(Buf{Data: dst, Refcount: p.refcount})
		} else {
			zero(p.Data()[offset : offset+copyLen])
		}

		c.stateLock.Lock()
		c.changeStateLocked(p, pageWriting)
		c.stateLock.Unlock()

		offset = 0
		blockOffset = 0
		pi++
		p = n.pages.next(p)
	}
	n.pagesLock.Unlock()

	wf.complete = true
	n.fsWrite(writeSg, r, wf.run)
	wf.completion(OK())
}

func (wf *writeFinish) phase2(s Status) {
	n := wf.n
	c := n.volume.cache
	pageOrder := c.PageOrder()

	if !s.IsOK() {
		n.volume.latchWriteError(s)
	}

	pi := wf.q.Start >> pageOrder
	end := (wf.q.End + (1 << pageOrder) - 1) >> pageOrder

	n.pagesLock.Lock()
	pages := make([]*Page, 0, end-pi)
	p := n.pages.get(pi)
	for ; pi < end; pi++ {
		pages = append(pages, p)
		p = n.pages.next(p)
	}
	n.pagesLock.Unlock()

	for _, p := range pages {
		c.stateLock.Lock()
		if p.writeCount <= 0 {
			c.stateLock.Unlock()
			panic("pagecache: write completion for page with zero write_count")
		}
		p.writeCount--
		if p.writeCount == 0 {
			c.changeStateLocked(p, pageNew)
			c.queueCompletionsLocked(p, s)
		}
		c.stateLock.Unlock()
	}
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

func minU64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

func padUp(v, align uint64) uint64 {
	return (v + align - 1) &^ (align - 1)
}
