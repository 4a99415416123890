package mmapbits

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/bits"
	"sync/atomic"
	"time"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/hupe1980/mmapbits/blobstore"
	"github.com/hupe1980/mmapbits/internal/mmap"
	"github.com/hupe1980/mmapbits/loader"
	"github.com/hupe1980/mmapbits/snapshot"
)

// Store is a fixed-size bit array backed by a memory-mapped file.
//
// A Store is single-owner: mutations must not run concurrently with each
// other or with Flush and Close. Reads through a read-only Store may be shared.
type Store struct {
	path   string
	size   int64
	mode   mmap.Mode
	h      *mmap.Handle
	m      *mmap.Mapping
	opts   options
	logger *Logger
	closed atomic.Bool
}

var _ loader.BitWriter = (*Store)(nil)

// Create opens (creating if absent) the file at path, guarantees it holds at
// least size bytes, and maps the first size bytes read-write. New bytes read
// as zero; existing content is preserved.
func Create(path string, size int64, optFns ...Option) (*Store, error) {
	o := applyOptions(optFns)
	return openStore(path, size, mmap.ReadWrite, o)
}

// Open maps an existing file read-only over its full length.
// A missing file yields an error matching ErrNotFound.
func Open(path string, optFns ...Option) (*Store, error) {
	o := applyOptions(optFns)
	size, err := statSize(path, o)
	if err != nil {
		return nil, err
	}
	return openStore(path, size, mmap.ReadOnly, o)
}

// OpenWritable maps an existing file read-write over its full length, for
// adding bits to a store built earlier. Unlike Create it never creates the file.
func OpenWritable(path string, optFns ...Option) (*Store, error) {
	o := applyOptions(optFns)
	size, err := statSize(path, o)
	if err != nil {
		return nil, err
	}
	return openStore(path, size, mmap.ReadWrite, o)
}

func statSize(path string, o options) (int64, error) {
	info, err := o.fsys.Stat(path)
	if err != nil {
		err = &ResourceError{Op: "open", Path: path, Fd: -1, Err: err}
		o.metricsCollector.RecordOpen(0, 0, err)
		o.logger.WithPath(path).LogOpen(context.Background(), "stat", 0, err)
		return 0, err
	}
	return info.Size(), nil
}

func openStore(path string, size int64, mode mmap.Mode, o options) (*Store, error) {
	start := time.Now()
	logger := o.logger.WithPath(path)

	s, err := mapStore(path, size, mode, o)
	o.metricsCollector.RecordOpen(size, time.Since(start), err)
	logger.LogOpen(context.Background(), mode.String(), size, err)
	if err != nil {
		return nil, err
	}
	s.logger = logger
	return s, nil
}

// mapStore acquires the budget, opens and maps. Every failure path leaves
// no descriptor open and no budget held.
func mapStore(path string, size int64, mode mmap.Mode, o options) (*Store, error) {
	if size <= 0 {
		return nil, &ResourceError{Op: "open", Path: path, Fd: -1, Err: fmt.Errorf("%w: %d", ErrInvalidSize, size)}
	}
	if err := o.controller.AcquireMapping(size); err != nil {
		return nil, fmt.Errorf("map %s (%d bytes): %w", path, size, err)
	}

	var (
		h   *mmap.Handle
		m   *mmap.Mapping
		err error
	)
	if mode == mmap.ReadWrite {
		h, err = mmap.OpenForWrite(o.fsys, path, size)
	} else {
		h, err = mmap.OpenForRead(o.fsys, path)
	}
	if err != nil {
		o.controller.ReleaseMapping(size)
		return nil, err
	}

	// A failed map closes h.
	if mode == mmap.ReadWrite {
		m, err = mmap.MapReadWrite(h, size, o.lock)
	} else {
		m, err = mmap.MapReadOnly(h, size, o.lock)
	}
	if err != nil {
		o.controller.ReleaseMapping(size)
		return nil, err
	}

	if o.access != AccessDefault {
		if err := m.Advise(o.access); err != nil {
			_ = m.Unmap()
			_ = h.Close()
			o.controller.ReleaseMapping(size)
			return nil, err
		}
	}

	return &Store{
		path: path,
		size: size,
		mode: mode,
		h:    h,
		m:    m,
		opts: o,
	}, nil
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// Len returns the mapped size in bytes.
func (s *Store) Len() int64 { return s.size }

// Bits returns the number of addressable bits.
func (s *Store) Bits() uint64 { return uint64(s.size) * 8 }

// ReadOnly reports whether the store was opened with Open.
func (s *Store) ReadOnly() bool { return s.mode == mmap.ReadOnly }

// Closed reports whether the store has been closed, either explicitly or
// by a failed Flush.
func (s *Store) Closed() bool { return s.closed.Load() }

// Locked reports whether the mapped pages are pinned in memory.
func (s *Store) Locked() bool { return s.m.Locked() }

// SetBits ORs mask into the byte at index. Bits are never cleared.
func (s *Store) SetBits(index int64, mask byte) error {
	err := s.m.SetBits(index, mask)
	s.opts.metricsCollector.RecordSetBits(err)
	return err
}

// SetBit sets a single bit, addressed as byte bit/8, mask 1<<(bit%8).
func (s *Store) SetBit(bit uint64) error {
	index, mask := mmap.AddressOf(bit)
	return s.SetBits(index, mask)
}

// Byte returns the byte at index.
func (s *Store) Byte(index int64) (byte, error) {
	return s.m.Byte(index)
}

// Test reports whether bit is set.
func (s *Store) Test(bit uint64) (bool, error) {
	index, mask := mmap.AddressOf(bit)
	return s.m.TestBits(index, mask)
}

// Count returns the number of set bits.
func (s *Store) Count() (uint64, error) {
	data, err := s.bytes()
	if err != nil {
		return 0, err
	}
	var n uint64
	for _, b := range data {
		n += uint64(bits.OnesCount8(b))
	}
	return n, nil
}

// Bytes returns the mapped region. The slice is only valid until Close and
// must not be written through.
func (s *Store) Bytes() []byte { return s.m.Bytes() }

func (s *Store) bytes() ([]byte, error) {
	data := s.m.Bytes()
	if data == nil {
		return nil, s.closedError("read")
	}
	return data, nil
}

// ReadAt implements io.ReaderAt over the mapped region.
func (s *Store) ReadAt(p []byte, off int64) (int, error) {
	return s.m.ReadAt(p, off)
}

var _ io.ReaderAt = (*Store)(nil)

// Flush forces every mutation made so far to stable storage: the mapped
// pages are written back and the file data is synced.
//
// A failed Flush is fatal. The mapping is torn down, the descriptor closed
// and the budget released before the error is returned; every later call
// on the store fails with ErrClosed.
func (s *Store) Flush() error {
	if s.closed.Load() {
		return s.closedError("flush")
	}

	start := time.Now()
	err := s.m.Flush()
	if err == nil && s.mode == mmap.ReadWrite {
		err = s.h.Flush()
	}
	if err != nil {
		s.teardown()
	}

	s.opts.metricsCollector.RecordFlush(time.Since(start), err)
	s.logger.LogFlush(context.Background(), time.Since(start), err)
	return err
}

// Close unmaps the region, then closes the descriptor (syncing file data
// on a best-effort basis) and releases the budget. Calling Close twice
// returns an error matching ErrClosed.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return s.closedError("close")
	}

	err := errors.Join(s.m.Unmap(), s.h.Close())
	s.opts.controller.ReleaseMapping(s.size)

	s.opts.metricsCollector.RecordClose(err)
	s.logger.LogClose(context.Background(), err)
	return err
}

// teardown releases everything after a fatal error. It is a no-op once closed.
func (s *Store) teardown() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	_ = s.m.Unmap()
	// The handle may already be closed by its own failed flush.
	_ = s.h.Close()
	s.opts.controller.ReleaseMapping(s.size)
}

func (s *Store) closedError(op string) error {
	return &ResourceError{Op: op, Path: s.path, Fd: -1, Err: ErrClosed}
}

func (s *Store) writable(op string) error {
	if s.closed.Load() {
		return s.closedError(op)
	}
	if s.mode != mmap.ReadWrite {
		return ErrReadOnly
	}
	return nil
}

// Load applies strategy to every line of r. Bits set before a failing
// line stay set; the store is not flushed.
func (s *Store) Load(ctx context.Context, r io.Reader, strategy loader.Strategy, optFns ...func(*loader.Options)) (loader.Stats, error) {
	if err := s.writable("load"); err != nil {
		return loader.Stats{}, err
	}
	stats, err := loader.Load(ctx, s, r, strategy, s.loaderOptions(optFns)...)
	s.recordLoad(ctx, "reader", stats, err)
	return stats, err
}

// LoadFile applies strategy to every line of the file at path. A file that
// cannot be opened fails the load before any mutation.
func (s *Store) LoadFile(ctx context.Context, path string, strategy loader.Strategy, optFns ...func(*loader.Options)) (loader.Stats, error) {
	if err := s.writable("load"); err != nil {
		return loader.Stats{}, err
	}
	stats, err := loader.LoadFile(ctx, s.opts.fsys, s, path, strategy, s.loaderOptions(optFns)...)
	s.recordLoad(ctx, path, stats, err)
	return stats, err
}

// LoadBlob is LoadFile over a blob store.
func (s *Store) LoadBlob(ctx context.Context, store blobstore.BlobStore, name string, strategy loader.Strategy, optFns ...func(*loader.Options)) (loader.Stats, error) {
	if err := s.writable("load"); err != nil {
		return loader.Stats{}, err
	}
	stats, err := loader.LoadBlob(ctx, store, name, s, strategy, s.loaderOptions(optFns)...)
	s.recordLoad(ctx, name, stats, err)
	return stats, err
}

func (s *Store) loaderOptions(optFns []func(*loader.Options)) []func(*loader.Options) {
	base := func(o *loader.Options) {
		o.Controller = s.opts.controller
		o.Logger = s.logger.Logger
	}
	return append([]func(*loader.Options){base}, optFns...)
}

func (s *Store) recordLoad(ctx context.Context, source string, stats loader.Stats, err error) {
	s.opts.metricsCollector.RecordLoad(stats.Lines, stats.Duration, err)
	s.logger.LogLoad(ctx, source, stats.Lines, stats.Duration, err)
}

// Export writes the current contents as a snapshot named name.
// Unflushed mutations are included; Export does not flush the store.
func (s *Store) Export(ctx context.Context, store blobstore.BlobStore, name string, optFns ...func(*snapshot.Options)) error {
	start := time.Now()
	err := s.export(ctx, store, name, optFns)
	s.opts.metricsCollector.RecordSnapshot(time.Since(start), err)
	s.logger.LogSnapshot(ctx, "export", name, err)
	return err
}

func (s *Store) export(ctx context.Context, store blobstore.BlobStore, name string, optFns []func(*snapshot.Options)) error {
	data, err := s.bytes()
	if err != nil {
		return err
	}
	base := []func(*snapshot.Options){
		snapshot.WithController(s.opts.controller),
		snapshot.WithLogger(s.logger.Logger),
	}
	return snapshot.Write(ctx, store, name, data, append(base, optFns...)...)
}

// Import ORs the snapshot named name into the store and returns the number
// of non-zero bytes merged. A snapshot larger than the store is rejected
// before anything is written.
func (s *Store) Import(ctx context.Context, store blobstore.BlobStore, name string) (int64, error) {
	if err := s.writable("import"); err != nil {
		return 0, err
	}
	start := time.Now()
	n, err := snapshot.Apply(ctx, store, name, s, s.size)
	s.opts.metricsCollector.RecordSnapshot(time.Since(start), err)
	s.logger.LogSnapshot(ctx, "import", name, err)
	return n, err
}

// SetPositions returns the positions of all set bits.
func (s *Store) SetPositions() (*roaring64.Bitmap, error) {
	data, err := s.bytes()
	if err != nil {
		return nil, err
	}
	bm := roaring64.New()
	for i, b := range data {
		for b != 0 {
			bit := bits.TrailingZeros8(b)
			bm.Add(uint64(i)*8 + uint64(bit))
			b &= b - 1
		}
	}
	return bm, nil
}

// Merge sets every bit in bm. Positions are checked against Bits before the
// first write, so an out-of-range bitmap leaves the store unchanged.
func (s *Store) Merge(bm *roaring64.Bitmap) error {
	if err := s.writable("merge"); err != nil {
		return err
	}
	if bm == nil || bm.IsEmpty() {
		return nil
	}
	if maxBit := bm.Maximum(); maxBit >= s.Bits() {
		index, _ := mmap.AddressOf(maxBit)
		return &RangeError{Index: index, Size: s.m.Size()}
	}

	it := bm.Iterator()
	for it.HasNext() {
		if err := s.SetBit(it.Next()); err != nil {
			return err
		}
	}
	return nil
}
