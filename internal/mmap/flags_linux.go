//go:build linux

package mmap

import "golang.org/x/sys/unix"

// platformFlags always uses MAP_SHARED: a private mapping would make writes
// invisible to the file and to other readers.
func platformFlags(mode Mode, opts mapOptions) (int, mapOptions) {
	flags := unix.MAP_SHARED
	applied := mapOptions{}
	if opts.populate && mode == ReadWrite {
		flags |= unix.MAP_POPULATE
		applied.populate = true
	}
	if opts.lock {
		flags |= unix.MAP_LOCKED
		applied.lock = true
	}
	return flags, applied
}
