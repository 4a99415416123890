//go:build unix && !linux

package mmap

import "golang.org/x/sys/unix"

// platformFlags omits locking and population here; neither is required
// for correctness.
func platformFlags(_ Mode, _ mapOptions) (int, mapOptions) {
	return unix.MAP_SHARED, mapOptions{}
}
