package fs

import (
	"errors"
	"os"
	"strings"
	"sync"
)

// ErrInjected is the default error returned by injected faults.
var ErrInjected = errors.New("injected fault error")

// Fault defines specific failure behavior.
type Fault struct {
	FailOnOpen     bool
	FailAfterBytes int64 // Fail writes after this many bytes written TO THIS FILE. -1 to disable.
	FailOnSync     bool  // Applies to both Sync and Datasync.
	FailOnClose    bool
	FailOnAllocate bool
	// NoAllocate makes Allocate report ErrAllocateUnsupported, forcing
	// callers onto their fallback path.
	NoAllocate bool
	Err        error
}

// FaultyFS is a FileSystem wrapper that can inject errors.
type FaultyFS struct {
	FS      FileSystem
	mu      sync.Mutex
	rules   map[string]Fault // Filename pattern -> Fault
	Default Fault            // Fallback

	opened map[string]int
	closed map[string]int
}

// NewFaultyFS creates a new FaultyFS wrapping the provided FS (or Default if nil).
func NewFaultyFS(fs FileSystem) *FaultyFS {
	return &FaultyFS{
		FS:    OrDefault(fs),
		rules: make(map[string]Fault),
		Default: Fault{
			FailAfterBytes: -1, // No limit
		},
		opened: make(map[string]int),
		closed: make(map[string]int),
	}
}

// AddRule adds a fault injection rule for a specific file pattern.
func (f *FaultyFS) AddRule(pattern string, fault Fault) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules[pattern] = fault
}

// OpenCount returns how many times name was opened successfully.
func (f *FaultyFS) OpenCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opened[name]
}

// CloseCount returns how many times a file opened as name was closed.
// Closes that returned an injected error still count: the descriptor is released.
func (f *FaultyFS) CloseCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed[name]
}

func (f *FaultyFS) faultFor(name string) Fault {
	f.mu.Lock()
	defer f.mu.Unlock()
	fault := f.Default
	for pattern, rule := range f.rules {
		if strings.Contains(name, pattern) {
			fault = rule
		}
	}
	if fault.Err == nil {
		fault.Err = ErrInjected
	}
	return fault
}

func (f *FaultyFS) OpenFile(name string, flag int, perm os.FileMode) (File, error) {
	fault := f.faultFor(name)
	if fault.FailOnOpen {
		return nil, fault.Err
	}

	file, err := f.FS.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.opened[name]++
	f.mu.Unlock()

	return &faultyFile{File: file, fs: f, name: name, fault: fault}, nil
}

func (f *FaultyFS) Remove(name string) error {
	return f.FS.Remove(name)
}

func (f *FaultyFS) Rename(oldpath, newpath string) error {
	return f.FS.Rename(oldpath, newpath)
}

func (f *FaultyFS) Stat(name string) (os.FileInfo, error) {
	return f.FS.Stat(name)
}

func (f *FaultyFS) MkdirAll(path string, perm os.FileMode) error {
	return f.FS.MkdirAll(path, perm)
}

func (f *FaultyFS) ReadDir(name string) ([]os.DirEntry, error) {
	return f.FS.ReadDir(name)
}

type faultyFile struct {
	File
	fs      *FaultyFS
	name    string
	fault   Fault
	written int64
}

func (ff *faultyFile) Write(p []byte) (n int, err error) {
	if ff.fault.FailAfterBytes >= 0 && ff.written+int64(len(p)) > ff.fault.FailAfterBytes {
		return 0, ff.fault.Err
	}
	n, err = ff.File.Write(p)
	if n > 0 {
		ff.written += int64(n)
	}
	return n, err
}

func (ff *faultyFile) Sync() error {
	if ff.fault.FailOnSync {
		return ff.fault.Err
	}
	return ff.File.Sync()
}

func (ff *faultyFile) Datasync() error {
	if ff.fault.FailOnSync {
		return ff.fault.Err
	}
	return ff.File.Datasync()
}

func (ff *faultyFile) Allocate(off, length int64) error {
	switch {
	case ff.fault.NoAllocate:
		return ErrAllocateUnsupported
	case ff.fault.FailOnAllocate:
		return ff.fault.Err
	}
	return ff.File.Allocate(off, length)
}

func (ff *faultyFile) Close() error {
	err := ff.File.Close()
	ff.fs.mu.Lock()
	ff.fs.closed[ff.name]++
	ff.fs.mu.Unlock()
	if ff.fault.FailOnClose {
		return ff.fault.Err
	}
	return err
}
