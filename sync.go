package pagecache

// SyncVolume is pagecache_sync_volume. Rather than walking every node,
// it takes a shortcut: every WRITING page of the volume's cache shares
// one cache-wide writing list, and if that list is non-empty the
// completion is attached to the page at its tail (the most recently
// written page). It then fires when that page's write_count drops to
// zero. Writes on other pages are not waited for, so one that completes
// later than the tail page's write is not covered. If nothing is
// outstanding, it reports success immediately.
func SyncVolume(v *Volume, completion Completion) {
	c := v.cache
	c.stateLock.Lock()
	if p := c.writingList.back(); p != nil {
		p.completions = append(p.completions, completion)
		c.stateLock.Unlock()
		return
	}
	c.stateLock.Unlock()
	completion(OK())
}

// SyncNode completes once every page of n that is WRITING or DIRTY at the
// time of the call has retired; it issues no writes of its own. Unlike
// SyncVolume it doesn't take the volume-wide shortcut, since a single
// node's writes aren't necessarily contiguous within the shared writing
// list.
func SyncNode(n *Node, completion Completion) {
	c := n.volume.cache
	m := newMerge(completion)

	n.pagesLock.Lock()
	pages := make([]*Page, 0, n.pages.len())
	collect(n.pages, &pages)
	n.pagesLock.Unlock()

	c.stateLock.Lock()
	for _, p := range pages {
		if p.State() == pageWriting || p.State() == pageDirty {
			p.completions = append(p.completions, m.handle())
		}
	}
	c.stateLock.Unlock()

	m.release(OK())
}
