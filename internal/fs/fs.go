package fs

import (
	"errors"
	"io"
	"os"
)

// ErrAllocateUnsupported is returned by [File.Allocate] when the platform or
// the underlying filesystem cannot reserve a byte range directly.
var ErrAllocateUnsupported = errors.ErrUnsupported

// File represents an open file.
type File interface {
	io.ReadWriteCloser
	io.ReaderAt
	io.Seeker
	Sync() error
	Stat() (os.FileInfo, error)
	Name() string
	// Fd returns the OS descriptor. It is only valid while the file is open.
	Fd() uintptr
	// Allocate reserves the byte range [off, off+length), extending the
	// file if needed. Returns ErrAllocateUnsupported when direct
	// allocation is not available.
	Allocate(off, length int64) error
	// Datasync flushes file data (not necessarily metadata) to stable storage.
	Datasync() error
}

// FileSystem abstracts file system operations for testability.
type FileSystem interface {
	OpenFile(name string, flag int, perm os.FileMode) (File, error)
	Remove(name string) error
	Rename(oldpath, newpath string) error
	Stat(name string) (os.FileInfo, error)
	MkdirAll(path string, perm os.FileMode) error
	ReadDir(name string) ([]os.DirEntry, error)
}

// LocalFS implements FileSystem using the local os package.
type LocalFS struct{}

func (LocalFS) OpenFile(name string, flag int, perm os.FileMode) (File, error) {
	f, err := os.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	return &localFile{File: f}, nil
}

func (LocalFS) Remove(name string) error              { return os.Remove(name) }
func (LocalFS) Rename(oldpath, newpath string) error  { return os.Rename(oldpath, newpath) }
func (LocalFS) Stat(name string) (os.FileInfo, error) { return os.Stat(name) }
func (LocalFS) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}
func (LocalFS) ReadDir(name string) ([]os.DirEntry, error) { return os.ReadDir(name) }

// Default is the default local file system.
var Default FileSystem = LocalFS{}

// OrDefault returns fsys, or Default when fsys is nil.
func OrDefault(fsys FileSystem) FileSystem {
	if fsys == nil {
		return Default
	}
	return fsys
}

type localFile struct {
	*os.File
}

func (f *localFile) Allocate(off, length int64) error {
	return allocate(f.File, off, length)
}

func (f *localFile) Datasync() error {
	return datasync(f.File)
}
