package pagecache

import (
	"sync"
	"sync/atomic"

	"github.com/ryogrid/pagecache/sgio"
)

// merge is the N-way completion aggregator described in the design notes:
// allocate one with a continuation, hand out a handle per participant,
// and the continuation fires exactly once, with the worst status seen,
// when every outstanding handle (plus the initial reservation held by the
// allocator itself) has arrived.
//
// The initial reservation exists so that the caller issuing a batch of
// handles can finish issuing them before any of them have a chance to
// complete the merge early: the caller calls release() only once it is
// done calling handle() for every participant.
type merge struct {
	mu         sync.Mutex
	pending    int
	worst      sgio.Status
	fired      bool
	completion sgio.Completion
}

// newMerge allocates a merge with its initial reservation already taken.
func newMerge(completion sgio.Completion) *merge {
	return &merge{pending: 1, worst: sgio.OK(), completion: completion}
}

// handle reserves one more participant and returns a completion callable
// for it. The returned callable must be invoked exactly once.
func (m *merge) handle() sgio.Completion {
	m.mu.Lock()
	m.pending++
	m.mu.Unlock()

	var fired int32
	return func(s sgio.Status) {
		if !atomic.CompareAndSwapInt32(&fired, 0, 1) {
			panic("pagecache: merge handle invoked more than once")
		}
		m.arrive(s)
	}
}

// release fires the initial reservation, signalling that the caller has
// finished issuing handles for this batch.
func (m *merge) release(s sgio.Status) {
	m.arrive(s)
}

func (m *merge) arrive(s sgio.Status) {
	m.mu.Lock()
	if !s.IsOK() && m.worst.IsOK() {
		m.worst = s
	}
	m.pending--
	if m.pending < 0 {
		m.mu.Unlock()
		panic("pagecache: merge over-released")
	}
	fire := m.pending == 0 && !m.fired
	if fire {
		m.fired = true
	}
	worst := m.worst
	m.mu.Unlock()

	if fire {
		m.completion(worst)
	}
}
