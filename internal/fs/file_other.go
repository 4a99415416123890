//go:build !linux

package fs

import "os"

func allocate(_ *os.File, _, _ int64) error {
	return ErrAllocateUnsupported
}

// datasync falls back to a full fsync where fdatasync(2) is unavailable.
func datasync(f *os.File) error {
	return f.Sync()
}
