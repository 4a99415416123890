// Package fs provides filesystem abstractions for testability and fault injection.
//
// The package defines two key interfaces:
//
//   - [File]: an open file with read/write/sync capabilities plus the two
//     storage-engine extensions the bit store needs: [File.Allocate] and
//     [File.Datasync].
//   - [FileSystem]: filesystem operations (open, remove, rename, ...).
//
// # Implementations
//
//   - [LocalFS]: production implementation backed by the os package and
//     golang.org/x/sys for fallocate(2) and fdatasync(2).
//   - [FaultyFS]: test utility for fault injection (failed writes, syncs,
//     allocations and closes).
//
// # Usage
//
// Production code should use fs.Default (which is [LocalFS]):
//
//	file, err := fs.Default.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
//
// Tests can inject [FaultyFS] to simulate failures:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule("bits.bin", fs.Fault{FailAfterBytes: -1, FailOnSync: true})
//	// inject ffs into component under test
//
// # Design Notes
//
// This package does NOT include context.Context parameters. Filesystem
// operations are non-interruptible at the syscall level.
package fs
