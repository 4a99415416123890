package mmapbits

import (
	"errors"

	"github.com/hupe1980/mmapbits/internal/mmap"
	"github.com/hupe1980/mmapbits/resource"
)

// ResourceError reports a failed OS resource operation (open, fallocate,
// mmap, flush, close) with the path and descriptor it concerned.
//
// The underlying OS error can be accessed via errors.Unwrap.
type ResourceError = mmap.ResourceError

// RangeError reports a byte index outside the store. It matches ErrOutOfBounds.
type RangeError = mmap.RangeError

var (
	// ErrClosed is returned when using a store that was already closed.
	ErrClosed = mmap.ErrClosed
	// ErrInvalidSize is returned for a non-positive size or one larger than the file.
	ErrInvalidSize = mmap.ErrInvalidSize
	// ErrOutOfBounds is returned for a byte index or bit position outside the store.
	ErrOutOfBounds = mmap.ErrOutOfBounds
	// ErrReadOnly is returned when mutating a store opened with Open.
	ErrReadOnly = mmap.ErrReadOnly
	// ErrNotFound is returned by Open and OpenWritable for a missing file.
	ErrNotFound = mmap.ErrNotFound
	// ErrMemoryLimitExceeded is returned when the mapping would exceed the
	// resource controller's mapped-bytes budget.
	ErrMemoryLimitExceeded = resource.ErrMemoryLimitExceeded
)

// IsNotFound reports whether err was caused by a missing backing file.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
