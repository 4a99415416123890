package mmap

import (
	"errors"
	"fmt"
	"os"
)

var (
	// ErrClosed is returned when using a handle or mapping that was already released.
	ErrClosed = errors.New("mmap: closed")
	// ErrInvalidSize is returned when a size is non-positive or exceeds the backing file.
	ErrInvalidSize = errors.New("mmap: invalid size")
	// ErrOutOfBounds is returned when a byte index falls outside the mapping.
	ErrOutOfBounds = errors.New("mmap: out of bounds")
	// ErrInvalidOffset is returned when the offset is invalid (e.g. negative).
	ErrInvalidOffset = errors.New("mmap: invalid offset")
	// ErrReadOnly is returned when mutating a read-only mapping.
	ErrReadOnly = errors.New("mmap: mapping is read-only")
	// ErrNotFound matches the error returned by OpenForRead for a missing path.
	ErrNotFound = os.ErrNotExist
)

// ResourceError reports a failed OS resource operation (open, allocate,
// map, unmap, flush, close) together with the file it concerned.
//
// The underlying OS error can be accessed via errors.Unwrap.
type ResourceError struct {
	Op   string
	Path string
	Fd   int // -1 when no descriptor was involved
	Err  error
}

func (e *ResourceError) Error() string {
	if e.Fd >= 0 {
		return fmt.Sprintf("mmap: %s %s (fd %d): %v", e.Op, e.Path, e.Fd, e.Err)
	}
	return fmt.Sprintf("mmap: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *ResourceError) Unwrap() error { return e.Err }

// RangeError reports a byte index outside [0, Size).
type RangeError struct {
	Index int64
	Size  int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("mmap: byte index %d out of range [0, %d)", e.Index, e.Size)
}

// Is reports ErrOutOfBounds as equivalent.
func (e *RangeError) Is(target error) bool { return target == ErrOutOfBounds }

// IsNotFound reports whether err was caused by a missing backing file.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
