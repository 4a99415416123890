//go:build unix

package mmap

import (
	"github.com/hupe1980/mmapbits/internal/fs"
	"golang.org/x/sys/unix"
)

func osMap(f fs.File, size int, mode Mode, opts mapOptions) ([]byte, mapOptions, func([]byte) error, error) {
	prot := unix.PROT_READ
	if mode == ReadWrite {
		prot |= unix.PROT_WRITE
	}
	flags, applied := platformFlags(mode, opts)

	data, err := unix.Mmap(int(f.Fd()), 0, size, prot, flags)
	if err != nil {
		return nil, mapOptions{}, nil, err
	}

	return data, applied, unix.Munmap, nil
}

func osMsync(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	return unix.Msync(data, unix.MS_SYNC)
}

func osAdvise(data []byte, pattern AccessPattern) error {
	if len(data) == 0 {
		return nil
	}

	var advice int
	switch pattern {
	case AccessSequential:
		advice = unix.MADV_SEQUENTIAL
	case AccessRandom:
		advice = unix.MADV_RANDOM
	case AccessWillNeed:
		advice = unix.MADV_WILLNEED
	case AccessDontNeed:
		advice = unix.MADV_DONTNEED
	default:
		advice = unix.MADV_NORMAL
	}

	// The hint is advisory; an alignment complaint is not worth failing for.
	err := unix.Madvise(data, advice)
	if err == unix.EINVAL {
		return nil
	}
	return err
}
