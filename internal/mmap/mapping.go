package mmap

import (
	"fmt"
	"io"
	"sync/atomic"

	"github.com/hupe1980/mmapbits/internal/conv"
)

// Mapping is a shared memory mapping of a backing file.
// It owns the mapped byte slice and is responsible for unmapping it.
//
// Mapping does no locking: SetBits calls must be serialized by the owner.
type Mapping struct {
	data    []byte
	size    int
	mode    Mode
	path    string
	applied mapOptions
	closed  atomic.Bool
	// unmap is the platform-specific function to unmap the memory.
	unmap func([]byte) error
}

// MapReadOnly establishes a shared, read-only mapping of the first size
// bytes of h. With wantLock the pages are pinned in physical memory where
// the platform supports it; elsewhere the request is silently dropped.
//
// If mapping fails, h is closed before the *ResourceError is returned.
// Callers must not use h after a failed call.
func MapReadOnly(h *Handle, size int64, wantLock bool) (*Mapping, error) {
	return mapHandle(h, size, ReadOnly, mapOptions{lock: wantLock})
}

// MapReadWrite establishes a shared, read-write mapping of the first size
// bytes of h. Pages are always pre-faulted at mapping time where the
// platform supports it, so later writes do not stall on page faults.
// wantLock behaves as in MapReadOnly.
//
// If mapping fails, h is closed before the *ResourceError is returned.
// Callers must not use h after a failed call.
func MapReadWrite(h *Handle, size int64, wantLock bool) (*Mapping, error) {
	return mapHandle(h, size, ReadWrite, mapOptions{lock: wantLock, populate: true})
}

func mapHandle(h *Handle, size int64, mode Mode, opts mapOptions) (*Mapping, error) {
	m, err := h.mmap(size, mode, opts)
	if err != nil {
		h.release()
		return nil, err
	}
	return m, nil
}

func (h *Handle) mmap(size int64, mode Mode, opts mapOptions) (*Mapping, error) {
	if h.closed.Load() {
		return nil, h.closedError("mmap")
	}
	if size <= 0 {
		return nil, h.errorf("mmap", fmt.Errorf("%w: %d", ErrInvalidSize, size))
	}

	fileSize, err := h.Size()
	if err != nil {
		return nil, err
	}
	// Pages past EOF would SIGBUS on first touch instead of failing here.
	if size > fileSize {
		return nil, h.errorf("mmap", fmt.Errorf("%w: %d bytes requested, file has %d", ErrInvalidSize, size, fileSize))
	}

	n, err := conv.Int64ToInt(size)
	if err != nil {
		return nil, h.errorf("mmap", fmt.Errorf("%w: %w", ErrInvalidSize, err))
	}

	data, applied, unmap, err := osMap(h.f, n, mode, opts)
	if err != nil {
		return nil, h.errorf("mmap", err)
	}

	return &Mapping{
		data:    data,
		size:    n,
		mode:    mode,
		path:    h.path,
		applied: applied,
		unmap:   unmap,
	}, nil
}

// SetBits ORs mask into the byte at index. Bits are only ever set, never
// cleared. The change is not durable until flushed.
func (m *Mapping) SetBits(index int64, mask byte) error {
	if m.closed.Load() {
		return ErrClosed
	}
	if m.mode != ReadWrite {
		return ErrReadOnly
	}
	if index < 0 || index >= int64(m.size) {
		return &RangeError{Index: index, Size: m.size}
	}
	m.data[index] |= mask
	return nil
}

// Byte returns the byte at index.
func (m *Mapping) Byte(index int64) (byte, error) {
	if m.closed.Load() {
		return 0, ErrClosed
	}
	if index < 0 || index >= int64(m.size) {
		return 0, &RangeError{Index: index, Size: m.size}
	}
	return m.data[index], nil
}

// TestBits reports whether every bit of mask is set in the byte at index.
func (m *Mapping) TestBits(index int64, mask byte) (bool, error) {
	b, err := m.Byte(index)
	if err != nil {
		return false, err
	}
	return b&mask == mask, nil
}

// Flush synchronously writes dirty mapped pages back to the file (msync).
// It complements Handle.Flush, which syncs the descriptor.
func (m *Mapping) Flush() error {
	if m.closed.Load() {
		return ErrClosed
	}
	if m.mode != ReadWrite {
		return nil
	}
	if err := osMsync(m.data); err != nil {
		return &ResourceError{Op: "msync", Path: m.path, Fd: -1, Err: err}
	}
	return nil
}

// Unmap releases the mapping. It must be called before the owning Handle
// is closed. It is idempotent; the Handle is never touched. If munmap
// fails the mapping stays open and Unmap may be retried.
func (m *Mapping) Unmap() error {
	if m.closed.Load() {
		return nil
	}
	if m.unmap != nil && m.data != nil {
		if err := m.unmap(m.data); err != nil {
			return &ResourceError{Op: "munmap", Path: m.path, Fd: -1, Err: err}
		}
	}
	m.closed.Store(true)
	m.data = nil
	return nil
}

// Bytes returns the underlying byte slice.
// Warning: The slice is valid only until Unmap() is called.
// Writing through the slice of a read-only mapping faults the process.
func (m *Mapping) Bytes() []byte {
	if m.closed.Load() {
		return nil
	}
	return m.data
}

// Size returns the size of the mapping in bytes.
func (m *Mapping) Size() int {
	return m.size
}

// Mode returns the access mode of the mapping.
func (m *Mapping) Mode() Mode { return m.mode }

// Path returns the path of the mapped file.
func (m *Mapping) Path() string { return m.path }

// Locked reports whether the pages were pinned at mapping time.
func (m *Mapping) Locked() bool { return m.applied.lock }

// Populated reports whether the pages were pre-faulted at mapping time.
func (m *Mapping) Populated() bool { return m.applied.populate }

// Closed reports whether Unmap has been called.
func (m *Mapping) Closed() bool { return m.closed.Load() }

// Advise provides hints to the kernel about how the memory will be accessed.
func (m *Mapping) Advise(pattern AccessPattern) error {
	if m.closed.Load() {
		return ErrClosed
	}
	return osAdvise(m.data, pattern)
}

// ReadAt implements io.ReaderAt.
func (m *Mapping) ReadAt(p []byte, off int64) (n int, err error) {
	if m.closed.Load() {
		return 0, ErrClosed
	}
	if off < 0 {
		return 0, ErrInvalidOffset
	}
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n = copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}
