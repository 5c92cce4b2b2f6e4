package pagecache

// read is node.cache_read: §4.2/§4.3. It walks the requested range page by
// page, allocating and touching each page as it goes, gathering a
// scatter/gather descriptor into the caller's sg for every page it
// touches, and firing completion once every fill it issued or queued
// behind has completed. Resident pages, and pages in WRITING or DIRTY,
// do not delay the completion.
func (n *Node) read(sg *List, q Range, completion Completion) {
	m := newMerge(completion)

	n.pagesLock.Lock()

	end := n.length
	if q.End > end {
		q.End = end
	}
	if q.End <= q.Start {
		n.pagesLock.Unlock()
		m.release(OK())
		return
	}

	pageOrder := n.volume.cache.PageOrder()
	start := q.Start >> pageOrder
	last := (q.End + (1 << pageOrder) - 1) >> pageOrder

	p := n.pages.ceil(start)
	for pi := start; pi < last; pi++ {
		if p == nil || p.Index() > pi {
			var s Status
			p, s = n.volume.cache.allocatePage(n, pi)
			if !s.IsOK() {
				n.pagesLock.Unlock()
				m.release(s)
				return
			}
		}

		r := p.byteRange(pageOrder)
		i := q.Intersect(r)
		length := i.Span()
		if length > 0 {
			buf := Buf{
				Data:     p.Data()[i.Start-r.Start : i.Start-r.Start+length],
				Refcount: p.refcount,
			}
			p.refcount.Reserve()
			sg.Add(buf)
		}

		n.touchOrFillNodeLocked(p, m)
		p = n.pages.next(p)
	}

	n.pagesLock.Unlock()
	m.release(OK())
}

// touchOrFillNodeLocked is touch_or_fill_page_nodelocked: it inspects the
// page's current state under stateLock and either queues the merge's
// completion behind an in-flight fill, issues a new fill, promotes a cache
// hit from NEW to ACTIVE, re-queues ACTIVE at the tail of its list, or — for
// WRITING/DIRTY — does nothing further, since a pending write will itself
// deliver a fresh, up to date page. Caller must hold the node's pagesLock.
func (n *Node) touchOrFillNodeLocked(p *Page, m *merge) {
	c := n.volume.cache
	c.stateLock.Lock()

	switch p.State() {
	case pageReading:
		p.completions = append(p.completions, m.handle())
		c.stateLock.Unlock()

	case pageAlloc:
		p.completions = append(p.completions, m.handle())
		c.changeStateLocked(p, pageReading)
		c.stateLock.Unlock()

		r := p.byteRange(c.PageOrder())
		sg := NewList()
		p.refcount.Reserve()
		sg.Add(Buf{Data: p.Data(), Refcount: p.refcount})
		n.fsRead(sg, r, func(s Status) {
			c.logger.Debug().Uint64("page", p.Index()).Bool("ok", s.IsOK()).Msg("page read complete")
			c.stateLock.Lock()
			c.changeStateLocked(p, pageNew)
			c.queueCompletionsLocked(p, s)
			c.stateLock.Unlock()
			sg.Release()
		})

	case pageActive:
		c.activeList.touch(p)
		c.stateLock.Unlock()

	case pageNew:
		c.changeStateLocked(p, pageActive)
		c.stateLock.Unlock()

	case pageWriting, pageDirty:
		c.stateLock.Unlock()

	default:
		c.stateLock.Unlock()
		panic("pagecache: touch_or_fill on page in unexpected state")
	}
}
