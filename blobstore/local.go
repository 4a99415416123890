package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/hupe1980/mmapbits/internal/fs"
	"github.com/hupe1980/mmapbits/internal/mmap"
)

const tmpSuffix = ".tmp"

// LocalStore implements BlobStore using the local file system.
// Blob names use forward slashes and map to paths below root.
type LocalStore struct {
	root string
	fsys fs.FileSystem
}

// NewLocalStore creates a new LocalStore rooted at the given directory.
func NewLocalStore(root string) *LocalStore {
	return NewLocalStoreFS(root, nil)
}

// NewLocalStoreFS is like NewLocalStore but performs file IO through fsys.
func NewLocalStoreFS(root string, fsys fs.FileSystem) *LocalStore {
	return &LocalStore{root: root, fsys: fs.OrDefault(fsys)}
}

// Root returns the directory the store is rooted at.
func (s *LocalStore) Root() string { return s.root }

func (s *LocalStore) path(name string) (string, error) {
	clean := path.Clean("/" + name)[1:]
	if clean == "" || clean != name {
		return "", fmt.Errorf("blobstore: invalid blob name %q", name)
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

// Open opens a blob for reading. Non-empty blobs are served from a
// read-only shared mapping.
func (s *LocalStore) Open(ctx context.Context, name string) (Blob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.path(name)
	if err != nil {
		return nil, err
	}

	h, err := mmap.OpenForRead(s.fsys, p)
	if err != nil {
		return nil, err
	}
	size, err := h.Size()
	if err != nil {
		_ = h.Close()
		return nil, err
	}
	if size == 0 {
		// Zero-length files cannot be mapped.
		if err := h.Close(); err != nil {
			return nil, err
		}
		return &sliceBlob{data: []byte{}}, nil
	}

	m, err := mmap.MapReadOnly(h, size, false)
	if err != nil {
		return nil, err
	}
	_ = m.Advise(mmap.AccessSequential)

	return &localBlob{h: h, m: m}, nil
}

// Create creates a blob that is written to a temporary file and renamed
// into place on Close.
func (s *LocalStore) Create(ctx context.Context, name string) (WritableBlob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.path(name)
	if err != nil {
		return nil, err
	}
	if err := s.fsys.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return nil, err
	}

	tmp := p + tmpSuffix
	f, err := s.fsys.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	return &localWritableBlob{fsys: s.fsys, f: f, tmp: tmp, path: p}, nil
}

// Put writes a blob atomically.
func (s *LocalStore) Put(ctx context.Context, name string, data []byte) error {
	w, err := s.Create(ctx, name)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Abort()
		return err
	}
	return w.Close()
}

// Delete removes a blob.
func (s *LocalStore) Delete(_ context.Context, name string) error {
	p, err := s.path(name)
	if err != nil {
		return err
	}
	if err := s.fsys.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// List returns all blobs matching the prefix. In-flight temporary files are skipped.
func (s *LocalStore) List(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	if err := s.walk(ctx, "", func(name string) {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}); err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

func (s *LocalStore) walk(ctx context.Context, dir string, fn func(name string)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	entries, err := s.fsys.ReadDir(filepath.Join(s.root, filepath.FromSlash(dir)))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && dir == "" {
			return nil
		}
		return err
	}
	for _, e := range entries {
		name := path.Join(dir, e.Name())
		if e.IsDir() {
			if err := s.walk(ctx, name, fn); err != nil {
				return err
			}
			continue
		}
		if strings.HasSuffix(name, tmpSuffix) {
			continue
		}
		fn(name)
	}
	return nil
}

// localBlob implements Blob over a read-only mapping.
type localBlob struct {
	h *mmap.Handle
	m *mmap.Mapping
}

func (b *localBlob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}
	n, err := b.m.ReadAt(p, off)
	if errors.Is(err, mmap.ErrClosed) {
		return n, ErrClosed
	}
	return n, err
}

func (b *localBlob) ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if b.m.Closed() {
		return nil, ErrClosed
	}
	if off < 0 || off >= b.Size() {
		return nil, io.EOF
	}
	return io.NopCloser(io.NewSectionReader(b.m, off, min(length, b.Size()-off))), nil
}

func (b *localBlob) Size() int64 {
	return int64(b.m.Size())
}

func (b *localBlob) Bytes() ([]byte, error) {
	if b.m.Closed() {
		return nil, ErrClosed
	}
	return b.m.Bytes(), nil
}

func (b *localBlob) Close() error {
	if b.m.Closed() {
		return nil
	}
	return errors.Join(b.m.Unmap(), b.h.Close())
}

// localWritableBlob writes to tmp and renames it to path on Close.
type localWritableBlob struct {
	fsys     fs.FileSystem
	f        fs.File
	tmp      string
	path     string
	finished atomic.Bool
}

func (w *localWritableBlob) Write(p []byte) (int, error) {
	if w.finished.Load() {
		return 0, ErrClosed
	}
	return w.f.Write(p)
}

func (w *localWritableBlob) Close() error {
	if !w.finished.CompareAndSwap(false, true) {
		return ErrClosed
	}
	if err := w.f.Sync(); err != nil {
		_ = w.f.Close()
		_ = w.fsys.Remove(w.tmp)
		return err
	}
	if err := w.f.Close(); err != nil {
		_ = w.fsys.Remove(w.tmp)
		return err
	}
	return w.fsys.Rename(w.tmp, w.path)
}

func (w *localWritableBlob) Abort() error {
	if !w.finished.CompareAndSwap(false, true) {
		return nil
	}
	_ = w.f.Close()
	if err := w.fsys.Remove(w.tmp); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
