package pagecache

import "fmt"

// changeStateLocked performs one of the transitions in the table in §4.1.
// It is the sole means of moving a page between pagelists; it must be
// called with stateLock held, and it never blocks or calls into a
// collaborator. Any transition not in the table is a programming
// error and aborts the process, per §7 ("invalid state transition").
func (c *Cache) changeStateLocked(p *Page, next pageState) {
	old := p.State()
	switch next {
	case pageEvicted:
		switch old {
		case pageNew:
			c.newList.remove(p)
		case pageActive:
			c.activeList.remove(p)
		default:
			c.invalidTransition(p, old, next)
		}
		// caller removes p from its node's tree and releases the cache's
		// refcount after this call returns.
	case pageAlloc:
		if old != pageFree {
			c.invalidTransition(p, old, next)
		}
		c.freeList.remove(p)
	case pageReading:
		if old != pageAlloc {
			c.invalidTransition(p, old, next)
		}
	case pageWriting:
		switch old {
		case pageNew:
			move(c.writingList, c.newList, p)
		case pageActive:
			move(c.writingList, c.activeList, p)
		case pageWriting:
			c.writingList.touch(p)
		case pageAlloc:
			c.writingList.enqueue(p)
		default:
			c.invalidTransition(p, old, next)
		}
		p.writeCount++
	case pageNew:
		switch old {
		case pageActive:
			move(c.newList, c.activeList, p)
		case pageWriting:
			move(c.newList, c.writingList, p)
		case pageReading:
			c.newList.enqueue(p)
		default:
			c.invalidTransition(p, old, next)
		}
	case pageActive:
		if old != pageNew {
			c.invalidTransition(p, old, next)
		}
		move(c.activeList, c.newList, p)
	default:
		c.invalidTransition(p, old, next)
	}
	p.setStateOffset(next, p.Index())
}

func (c *Cache) invalidTransition(p *Page, old, next pageState) {
	panic(fmt.Sprintf("pagecache: invalid page state transition %s -> %s (page index %d)", old, next, p.Index()))
}
