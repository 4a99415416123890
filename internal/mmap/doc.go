// Package mmap implements the bit-storage engine: a backing file of fixed
// size, mapped shared into memory, mutated one byte-and-mask at a time.
//
// # Lifecycle
//
// The caller owns the whole sequence and must run it in this order:
//
//	h, err := mmap.OpenForWrite(nil, "bits.bin", 4096) // create + pre-size
//	if err != nil { ... }
//	m, err := mmap.MapReadWrite(h, 4096, false) // on error h is already closed
//	if err != nil { ... }
//
//	_ = m.SetBits(17, 0x80) // data[17] |= 0x80
//
//	_ = h.Flush()  // fdatasync; on error h is already closed
//	_ = m.Unmap()  // before Close
//	_ = h.Close()  // best-effort flush, then close(2)
//
// # Failure Contract
//
// Every failed open, map or flush releases the descriptor it was given
// before returning a *ResourceError. A failed Close still releases the
// descriptor. Nothing is retried.
//
// SetBits checks bounds and mode: an index outside the mapping yields a
// *RangeError (matching ErrOutOfBounds) and a read-only mapping yields
// ErrReadOnly.
//
// # Platform Support
//
//   - Linux: fallocate(2) pre-sizing, MAP_POPULATE for read-write mappings,
//     MAP_LOCKED on request, fdatasync(2).
//   - Other Unix: seek-and-write pre-sizing, plain MAP_SHARED, fsync(2).
//   - Windows: CreateFileMapping/MapViewOfFile, FlushViewOfFile for msync.
//
// # Thread Safety
//
// None. A Handle/Mapping pair belongs to one owner. The closed flags are
// atomic so that double release is detected, not to make mutation safe.
package mmap
