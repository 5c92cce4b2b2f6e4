// Package device holds the concrete fs_read/fs_write collaborators a
// filesystem hands to pagecache.AllocateNode: BlockFile for a real
// O_DIRECT-backed block device, and MemFile for tests.
package device

import (
	"os"

	"github.com/ncw/directio"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ryogrid/pagecache"
	"github.com/ryogrid/pagecache/sgio"
)

// BlockFile is a pagecache fs_read/fs_write collaborator backed by an
// O_DIRECT file descriptor, via github.com/ncw/directio. Read requests
// from the cache carry whole pages; write requests carry block-aligned
// windows into pages, each a whole number of blocks long. The buffer
// memory is aligned the way O_DIRECT requires only when the cache's
// contiguous allocator is NewAlignedAllocator.
type BlockFile struct {
	f      *os.File
	logger zerolog.Logger
}

// OpenBlockFile opens path for direct, unbuffered I/O.
func OpenBlockFile(path string) (*BlockFile, error) {
	f, err := directio.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	return &BlockFile{f: f, logger: log.Logger}, nil
}

// Close closes the underlying file descriptor.
func (b *BlockFile) Close() error { return b.f.Close() }

// Read is an pagecache.IOFunc: it performs one ReadAt per descriptor in sg
// and invokes completion with the worst status observed.
func (b *BlockFile) Read(sg *sgio.List, r sgio.Range, completion sgio.Completion) {
	off := int64(r.Start)
	var failure error
	for _, buf := range sg.Bufs {
		if failure == nil {
			if _, err := b.f.ReadAt(buf.Data, off); err != nil {
				failure = err
				b.logger.Error().Err(err).Int64("offset", off).Msg("block read failed")
			}
		}
		off += int64(len(buf.Data))
	}
	completion(sgio.FromError(failure))
}

// Write is an pagecache.IOFunc: it performs one WriteAt per descriptor in
// sg, in order, stopping at the first failure.
func (b *BlockFile) Write(sg *sgio.List, r sgio.Range, completion sgio.Completion) {
	if sg == nil {
		completion(sgio.OK())
		return
	}
	off := int64(r.Start)
	var failure error
	for _, buf := range sg.Bufs {
		if failure == nil {
			if _, err := b.f.WriteAt(buf.Data, off); err != nil {
				failure = err
				b.logger.Error().Err(err).Int64("offset", off).Msg("block write failed")
			}
		}
		off += int64(len(buf.Data))
	}
	completion(sgio.FromError(failure))
}

var _ pagecache.IOFunc = (*BlockFile)(nil).Read
var _ pagecache.IOFunc = (*BlockFile)(nil).Write

// AlignedBuffer returns a page-aligned buffer of size bytes, suitable for
// O_DIRECT reads and writes, via directio's own allocator.
func AlignedBuffer(size int) []byte {
	return directio.AlignedBlock(size)
}

// alignedAllocator is a pagecache.Allocator backed by directio's aligned
// block allocator. Pair it as the cache's contiguous allocator whenever
// its collaborator is a BlockFile, since O_DIRECT requires every buffer
// submitted to ReadAt/WriteAt to be aligned to the device's logical block
// size (directio.BlockSize).
type alignedAllocator struct{}

// NewAlignedAllocator returns a pagecache.Allocator suitable for a cache
// whose contiguous buffers will be submitted to O_DIRECT I/O.
func NewAlignedAllocator() pagecache.Allocator {
	return alignedAllocator{}
}

func (alignedAllocator) Allocate(size int) ([]byte, error) {
	return directio.AlignedBlock(size), nil
}

func (alignedAllocator) Free(buf []byte) {
	// directio.AlignedBlock buffers are ordinary Go heap memory (aligned
	// via overallocation); nothing to release explicitly.
}
