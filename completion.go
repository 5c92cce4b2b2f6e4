package pagecache

import (
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/ryogrid/pagecache/sgio"
)

// completionDispatcher is the fan-out discipline of §4.6: when a state
// transition drains a page's completion list, every queued continuation
// must be invoked exactly once, without state_lock held across the call.
type completionDispatcher interface {
	dispatch(completions []sgio.Completion, s sgio.Status)
}

// inlineDispatcher invokes continuations synchronously on the completing
// goroutine. This is the default, matching the non-STAGE3 branch of the
// original source — appropriate whenever callers don't mind a page's
// waiters running on whatever goroutine happened to finish its I/O.
type inlineDispatcher struct{}

func (inlineDispatcher) dispatch(completions []sgio.Completion, s sgio.Status) {
	for _, fn := range completions {
		fn(s)
	}
}

// completionBatch pairs one page's drained completions with the status
// they all receive — the deferred queue's unit of work, analogous to the
// source's practice of appending the status as the last element of the
// completion vector before enqueueing it.
type completionBatch struct {
	completions []sgio.Completion
	status      sgio.Status
}

// deferredDispatcher defers completions to a bounded queue and a single
// service goroutine, coalescing repeated wakeups behind a latch — the
// in-process analogue of posting a one-shot closure to a run queue. It is
// sized for worst-case concurrent I/O; a full queue is a hard failure
// (§4.6), not a point to silently drop work.
type deferredDispatcher struct {
	queue    chan completionBatch
	enqueued atomic.Bool
	logger   zerolog.Logger
}

func newDeferredDispatcher(capacity int, logger zerolog.Logger) *deferredDispatcher {
	if capacity <= 0 {
		panic("pagecache: deferred completion queue capacity must be positive")
	}
	return &deferredDispatcher{
		queue:  make(chan completionBatch, capacity),
		logger: logger,
	}
}

func (d *deferredDispatcher) dispatch(completions []sgio.Completion, s sgio.Status) {
	if len(completions) == 0 {
		return
	}
	select {
	case d.queue <- completionBatch{completions: completions, status: s}:
	default:
		// Capacity exhaustion of completion_vecs is a hard failure: the
		// design requires the queue to be sized for worst-case concurrent
		// I/O, so a full queue means that invariant has already been
		// violated upstream.
		panic("pagecache: deferred completion queue exhausted")
	}
	if d.enqueued.CompareAndSwap(false, true) {
		go d.service()
	}
}

// service drains the queue, invoking every batch's continuations with its
// stored status. It clears the enqueued latch before draining so that a
// completion arriving mid-drain is guaranteed to either be observed by
// this pass or to schedule a fresh one.
func (d *deferredDispatcher) service() {
	d.enqueued.Store(false)
	drained := 0
	for {
		select {
		case b := <-d.queue:
			for _, fn := range b.completions {
				fn(b.status)
			}
			drained++
		default:
			d.logger.Debug().Int("batches", drained).Msg("completion service pass done")
			return
		}
	}
}
