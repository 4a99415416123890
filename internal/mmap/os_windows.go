//go:build windows

package mmap

import (
	"unsafe"

	"github.com/hupe1980/mmapbits/internal/fs"
	"golang.org/x/sys/windows"
)

// osMap ignores opts: views are always shared with the file, and neither
// page locking nor population is requested.
func osMap(f fs.File, size int, mode Mode, _ mapOptions) ([]byte, mapOptions, func([]byte) error, error) {
	prot := uint32(windows.PAGE_READONLY)
	access := uint32(windows.FILE_MAP_READ)
	if mode == ReadWrite {
		prot = windows.PAGE_READWRITE
		access = windows.FILE_MAP_WRITE
	}

	h, err := windows.CreateFileMapping(windows.Handle(f.Fd()), nil, prot, 0, 0, nil)
	if err != nil {
		return nil, mapOptions{}, nil, err
	}
	// The view holds its own reference to the mapping object.
	defer windows.CloseHandle(h)

	addr, err := windows.MapViewOfFile(h, access, 0, 0, uintptr(size))
	if err != nil {
		return nil, mapOptions{}, nil, err
	}

	data := unsafe.Slice((*byte)(unsafe.Pointer(addr)), size)

	return data, mapOptions{}, func([]byte) error {
		return windows.UnmapViewOfFile(addr)
	}, nil
}

func osMsync(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	return windows.FlushViewOfFile(uintptr(unsafe.Pointer(&data[0])), uintptr(len(data)))
}

func osAdvise(_ []byte, _ AccessPattern) error {
	return nil
}
