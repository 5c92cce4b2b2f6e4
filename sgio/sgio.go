// Package sgio describes the external contracts the page cache core talks
// to: the scatter/gather buffer format, byte ranges, statuses, and the
// shape of the read/write collaborator hooks a filesystem supplies. None
// of the types here own an implementation of real I/O — that lives in
// package device — this package only fixes the wire shape, the way the
// teacher's own interfaces package fixed the shape of its buffer-pool
// collaborator without implementing one.
package sgio

import (
	"fmt"
	"sync/atomic"

	"github.com/pkg/errors"
)

// Status is the opaque result type the cache and its collaborators pass
// around. Callers outside the cache are only ever expected to test IsOK;
// Unwrap is provided for logging and for collaborators that want to
// inspect the underlying cause.
type Status struct {
	err error
}

// OK returns the canonical success status.
func OK() Status { return Status{} }

// FromError wraps a plain Go error as a Status. A nil error produces OK().
func FromError(err error) Status {
	return Status{err: err}
}

// Errorf builds a failure Status with a pkg/errors stack attached, the way
// allocation and validation failures are reported throughout this module.
func Errorf(format string, args ...interface{}) Status {
	return Status{err: errors.Errorf(format, args...)}
}

// Wrap attaches a message to an existing error, preserving its cause.
func Wrap(err error, message string) Status {
	if err == nil {
		return OK()
	}
	return Status{err: errors.Wrap(err, message)}
}

// IsOK reports whether the status represents success.
func (s Status) IsOK() bool { return s.err == nil }

// Unwrap returns the underlying error, or nil if the status is OK.
func (s Status) Unwrap() error { return s.err }

// Error implements the error interface so a Status can be returned from
// functions that otherwise return plain errors (e.g. collaborator setup).
func (s Status) Error() string {
	if s.err == nil {
		return "OK"
	}
	return s.err.Error()
}

func (s Status) String() string {
	if s.err == nil {
		return "OK"
	}
	return fmt.Sprintf("error: %v", s.err)
}

// Range is a half-open byte range [Start, End).
type Range struct {
	Start uint64
	End   uint64
}

// Span returns the number of bytes the range covers.
func (r Range) Span() uint64 {
	if r.End <= r.Start {
		return 0
	}
	return r.End - r.Start
}

// Intersect returns the overlap of r and o, which may be empty (Start==End).
func (r Range) Intersect(o Range) Range {
	start := r.Start
	if o.Start > start {
		start = o.Start
	}
	end := r.End
	if o.End < end {
		end = o.End
	}
	if end < start {
		end = start
	}
	return Range{Start: start, End: end}
}

// Completion is invoked exactly once with the final status of an
// operation. Collaborators and the cache itself never hold a lock while
// invoking one.
type Completion func(Status)

// IOFunc is the shape shared by the filesystem's fs_read/fs_write
// collaborator hooks and by the reader/writer closures the cache hands
// back to callers (node_reader, node_writer): submit against sg and
// range, return immediately, and signal completion asynchronously.
type IOFunc func(sg *List, r Range, completion Completion)

// Refcount is a shared, atomic reference count with a release callback
// invoked the first (and only) time it reaches zero. A Page owns one of
// these, and every scatter/gather Buf carved out of the page's buffer
// holds a pointer to the same Refcount, so the buffer's lifetime is the
// longest of: the cache's own reference, any in-flight I/O, and any
// caller still holding a Buf.
type Refcount struct {
	n    int32
	free func()
}

// NewRefcount creates a refcount initialized to n with the given release
// callback. n is normally 1 (the cache's own reference).
func NewRefcount(n int32, free func()) *Refcount {
	return &Refcount{n: n, free: free}
}

// Reserve adds one reference.
func (r *Refcount) Reserve() int32 {
	return atomic.AddInt32(&r.n, 1)
}

// Release drops one reference, invoking the release callback exactly once
// when the count reaches zero.
func (r *Refcount) Release() int32 {
	v := atomic.AddInt32(&r.n, -1)
	if v == 0 && r.free != nil {
		r.free()
	} else if v < 0 {
		panic("sgio: refcount released past zero")
	}
	return v
}

// Count returns the current reference count. Only meaningful as a hint —
// it can change the instant after it's read unless the caller otherwise
// knows no further release/reserve can race it.
func (r *Refcount) Count() int32 {
	return atomic.LoadInt32(&r.n)
}

// Buf is one scatter/gather descriptor: a window into a buffer backed by
// a shared Refcount. The buffer is not copied; Data aliases the owner's
// memory for the lifetime of the reservation represented by Refcount.
type Buf struct {
	Data     []byte
	Refcount *Refcount
}

// Release drops the reservation this Buf holds on its backing buffer.
func (b Buf) Release() {
	if b.Refcount != nil {
		b.Refcount.Release()
	}
}

// List is an ordered sequence of scatter/gather descriptors describing a
// (possibly non-contiguous) byte region.
type List struct {
	Bufs []Buf
}

// NewList allocates an empty scatter/gather list.
func NewList() *List {
	return &List{}
}

// Add appends a descriptor to the tail of the list.
func (l *List) Add(buf Buf) {
	l.Bufs = append(l.Bufs, buf)
}

// Release drops every descriptor's reservation on its backing buffer.
func (l *List) Release() {
	if l == nil {
		return
	}
	for _, b := range l.Bufs {
		b.Release()
	}
}

// Len returns the total number of bytes described by the list.
func (l *List) Len() int {
	n := 0
	for _, b := range l.Bufs {
		n += len(b.Data)
	}
	return n
}

// CopyTo gathers bytes from the list into dst, in list order, stopping
// when dst or the list is exhausted. It returns the number of bytes
// copied.
func CopyTo(dst []byte, l *List) int {
	n := 0
	for _, b := range l.Bufs {
		if n >= len(dst) {
			break
		}
		c := copy(dst[n:], b.Data)
		n += c
		if c < len(b.Data) {
			break
		}
	}
	return n
}

// CopyAt gathers bytes from l into dst starting at the given logical
// offset into l's concatenated contents, stopping when dst is full or l is
// exhausted. It returns the number of bytes copied. Used by multi-page
// writes that consume one source list incrementally, page by page, since
// List itself keeps no read cursor.
func CopyAt(dst []byte, l *List, offset int) int {
	n := 0
	skip := offset
	for _, b := range l.Bufs {
		if skip >= len(b.Data) {
			skip -= len(b.Data)
			continue
		}
		if n >= len(dst) {
			break
		}
		avail := b.Data[skip:]
		c := copy(dst[n:], avail)
		n += c
		skip = 0
		if c < len(avail) {
			break
		}
	}
	return n
}

// CopyFrom scatters bytes from src into the list's buffers, in list
// order. It returns the number of bytes copied.
func CopyFrom(l *List, src []byte) int {
	n := 0
	for _, b := range l.Bufs {
		if n >= len(src) {
			break
		}
		c := copy(b.Data, src[n:])
		n += c
		if c < len(b.Data) {
			break
		}
	}
	return n
}
