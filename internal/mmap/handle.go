package mmap

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/hupe1980/mmapbits/internal/fs"
)

// Handle is an open descriptor on one backing file.
//
// A Handle must be closed exactly once. It must stay open for as long as a
// Mapping created from it is in use, and the Mapping must be unmapped
// before the Handle is closed.
type Handle struct {
	f      fs.File
	path   string
	mode   Mode
	closed atomic.Bool
}

// OpenForWrite opens path read-write, creating it with mode 0644 if absent,
// and guarantees the file is at least size bytes long.
//
// The range [0, size) is allocated directly when the platform supports it.
// Otherwise a single zero byte is written at size-1 (only if the file is
// shorter), leaving a sparse hole that reads as zero.
//
// On failure the descriptor is closed before the *ResourceError is returned.
func OpenForWrite(fsys fs.FileSystem, path string, size int64) (*Handle, error) {
	if size <= 0 {
		return nil, &ResourceError{Op: "open", Path: path, Fd: -1, Err: fmt.Errorf("%w: %d", ErrInvalidSize, size)}
	}

	// O_WRONLY is not sufficient: a PROT_WRITE shared mapping needs a readable descriptor.
	f, err := fs.OrDefault(fsys).OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, &ResourceError{Op: "open", Path: path, Fd: -1, Err: err}
	}

	h := &Handle{f: f, path: path, mode: ReadWrite}
	if err := h.presize(size); err != nil {
		h.release()
		return nil, err
	}
	return h, nil
}

// OpenForRead opens an existing file read-only. It never creates or resizes.
// A missing path yields a *ResourceError matching ErrNotFound.
func OpenForRead(fsys fs.FileSystem, path string) (*Handle, error) {
	f, err := fs.OrDefault(fsys).OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, &ResourceError{Op: "open", Path: path, Fd: -1, Err: err}
	}
	return &Handle{f: f, path: path, mode: ReadOnly}, nil
}

func (h *Handle) presize(size int64) error {
	err := h.f.Allocate(0, size)
	if err == nil {
		return nil
	}
	if !errors.Is(err, fs.ErrAllocateUnsupported) {
		return h.errorf("fallocate", err)
	}

	info, err := h.f.Stat()
	if err != nil {
		return h.errorf("stat", err)
	}
	if info.Size() >= size {
		return nil
	}
	if _, err := h.f.Seek(size-1, io.SeekStart); err != nil {
		return h.errorf("seek", err)
	}
	if _, err := h.f.Write([]byte{0}); err != nil {
		return h.errorf("write", err)
	}
	return nil
}

// Path returns the path the handle was opened with.
func (h *Handle) Path() string { return h.path }

// Mode returns the access mode the handle was opened with.
func (h *Handle) Mode() Mode { return h.mode }

// Closed reports whether the descriptor has been released.
func (h *Handle) Closed() bool { return h.closed.Load() }

// Size returns the current length of the backing file.
func (h *Handle) Size() (int64, error) {
	if h.closed.Load() {
		return 0, h.closedError("stat")
	}
	info, err := h.f.Stat()
	if err != nil {
		return 0, h.errorf("stat", err)
	}
	return info.Size(), nil
}

// Flush forces written data (not necessarily metadata) to stable storage.
//
// If the flush fails the handle is closed before the error is returned;
// callers must not use it afterwards.
func (h *Handle) Flush() error {
	if h.closed.Load() {
		return h.closedError("flush")
	}
	if err := h.f.Datasync(); err != nil {
		rerr := h.errorf("flush", err)
		h.release()
		return rerr
	}
	return nil
}

// Close flushes (best effort) and releases the descriptor. A flush failure
// does not prevent the close. Calling Close twice returns ErrClosed.
func (h *Handle) Close() error {
	fd := h.fd()
	if !h.closed.CompareAndSwap(false, true) {
		return h.closedError("close")
	}
	_ = h.f.Datasync()
	if err := h.f.Close(); err != nil {
		return &ResourceError{Op: "close", Path: h.path, Fd: fd, Err: err}
	}
	return nil
}

// release closes the descriptor on an error path. It is a no-op if the
// handle is already closed.
func (h *Handle) release() {
	if h.closed.CompareAndSwap(false, true) {
		_ = h.f.Close()
	}
}

func (h *Handle) fd() int {
	if h.closed.Load() {
		return -1
	}
	return int(h.f.Fd())
}

func (h *Handle) errorf(op string, err error) *ResourceError {
	return &ResourceError{Op: op, Path: h.path, Fd: h.fd(), Err: err}
}

func (h *Handle) closedError(op string) *ResourceError {
	return &ResourceError{Op: op, Path: h.path, Fd: -1, Err: ErrClosed}
}
