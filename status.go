package pagecache

import "github.com/ryogrid/pagecache/sgio"

// Status, Range, Completion and IOFunc are re-exported from sgio so that
// callers of this package never need to import sgio directly for the
// common case — only collaborator implementations living outside this
// package (see package device) need the sgio package by name.
type (
	Status     = sgio.Status
	Range      = sgio.Range
	Completion = sgio.Completion
	IOFunc     = sgio.IOFunc
	List       = sgio.List
	Buf        = sgio.Buf
	Refcount   = sgio.Refcount
)

// OK is the canonical success status.
func OK() Status { return sgio.OK() }

// Errorf builds a failure status carrying a message and stack, used for
// the allocation-failure statuses named in §7 of the design ("failed to
// allocate <resource>").
func Errorf(format string, args ...interface{}) Status {
	return sgio.Errorf(format, args...)
}

// NewList allocates an empty scatter/gather list.
func NewList() *List { return sgio.NewList() }

// NewRefcount creates a refcount initialized to n with the given release
// callback.
func NewRefcount(n int32, free func()) *Refcount { return sgio.NewRefcount(n, free) }
