package blobstore

import (
	"bytes"
	"context"
	"io"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
)

// MemoryStore keeps blobs in a map. It is safe for concurrent use and is
// mostly useful in tests and for snapshots that never leave the process.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

func (m *MemoryStore) load(name string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.blobs[name]
	return data, ok
}

func (m *MemoryStore) store(name string, data []byte) {
	m.mu.Lock()
	m.blobs[name] = data
	m.mu.Unlock()
}

// Open implements BlobStore. Stored slices are replaced, never mutated, so
// the returned blob shares them without copying.
func (m *MemoryStore) Open(ctx context.Context, name string) (Blob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, ok := m.load(name)
	if !ok {
		return nil, ErrNotFound
	}
	return &sliceBlob{data: data}, nil
}

// Create implements BlobStore. The blob becomes visible on Close.
func (m *MemoryStore) Create(ctx context.Context, name string) (WritableBlob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &pendingBlob{dst: m, name: name}, nil
}

// Put stores a copy of data under name.
func (m *MemoryStore) Put(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.store(name, bytes.Clone(data))
	return nil
}

// Delete implements BlobStore. Deleting a missing blob is not an error.
func (m *MemoryStore) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	delete(m.blobs, name)
	m.mu.Unlock()
	return nil
}

// List implements BlobStore.
func (m *MemoryStore) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	names := make([]string, 0, len(m.blobs))
	for name := range m.blobs {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	m.mu.RUnlock()

	slices.Sort(names)
	return names, nil
}

// sliceBlob serves reads from a byte slice.
type sliceBlob struct {
	data   []byte
	closed atomic.Bool
}

func (b *sliceBlob) usable(ctx context.Context) error {
	if b.closed.Load() {
		return ErrClosed
	}
	return ctx.Err()
}

func (b *sliceBlob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if err := b.usable(ctx); err != nil {
		return 0, err
	}
	return bytes.NewReader(b.data).ReadAt(p, off)
}

func (b *sliceBlob) ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	if err := b.usable(ctx); err != nil {
		return nil, err
	}
	size := int64(len(b.data))
	if off < 0 || off >= size {
		return nil, io.EOF
	}
	return io.NopCloser(bytes.NewReader(b.data[off:min(off+length, size)])), nil
}

func (b *sliceBlob) Bytes() ([]byte, error) {
	if b.closed.Load() {
		return nil, ErrClosed
	}
	return b.data, nil
}

func (b *sliceBlob) Size() int64 { return int64(len(b.data)) }

func (b *sliceBlob) Close() error {
	b.closed.Store(true)
	return nil
}

// pendingBlob buffers writes until Close publishes them.
type pendingBlob struct {
	dst  *MemoryStore
	name string
	buf  bytes.Buffer
	done atomic.Bool
}

func (w *pendingBlob) Write(p []byte) (int, error) {
	if w.done.Load() {
		return 0, ErrClosed
	}
	return w.buf.Write(p)
}

func (w *pendingBlob) Close() error {
	if !w.done.CompareAndSwap(false, true) {
		return ErrClosed
	}
	data := append([]byte{}, w.buf.Bytes()...)
	w.dst.store(w.name, data)
	return nil
}

func (w *pendingBlob) Abort() error {
	if w.done.CompareAndSwap(false, true) {
		w.buf.Reset()
	}
	return nil
}
