package device

import (
	"github.com/dsnet/golib/memfile"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ryogrid/pagecache"
	"github.com/ryogrid/pagecache/sgio"
)

// MemFile is a pagecache fs_read/fs_write collaborator backed by
// github.com/dsnet/golib/memfile, an in-memory file. It exists for tests
// and for benchmarking the cache without a real block device, the same
// role the teacher's dummy adapters played for its buffer pool.
type MemFile struct {
	f      *memfile.File
	logger zerolog.Logger
}

// NewMemFile wraps backing as a MemFile. backing is not copied; writes
// past its current length grow it the way memfile.File grows any other
// in-memory file.
func NewMemFile(backing []byte) *MemFile {
	return &MemFile{f: memfile.New(backing), logger: log.Logger}
}

// Bytes returns the file's current backing buffer.
func (m *MemFile) Bytes() []byte { return m.f.Bytes() }

// Read is a pagecache.IOFunc.
func (m *MemFile) Read(sg *sgio.List, r sgio.Range, completion sgio.Completion) {
	off := int64(r.Start)
	var failure error
	for _, buf := range sg.Bufs {
		if failure == nil {
			if _, err := m.f.ReadAt(buf.Data, off); err != nil {
				failure = err
				m.logger.Debug().Err(err).Int64("offset", off).Msg("memfile read failed")
			}
		}
		off += int64(len(buf.Data))
	}
	completion(sgio.FromError(failure))
}

// Write is a pagecache.IOFunc.
func (m *MemFile) Write(sg *sgio.List, r sgio.Range, completion sgio.Completion) {
	if sg == nil {
		completion(sgio.OK())
		return
	}
	off := int64(r.Start)
	var failure error
	for _, buf := range sg.Bufs {
		if failure == nil {
			if _, err := m.f.WriteAt(buf.Data, off); err != nil {
				failure = err
				m.logger.Debug().Err(err).Int64("offset", off).Msg("memfile write failed")
			}
		}
		off += int64(len(buf.Data))
	}
	completion(sgio.FromError(failure))
}

var _ pagecache.IOFunc = (*MemFile)(nil).Read
var _ pagecache.IOFunc = (*MemFile)(nil).Write
