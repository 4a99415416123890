package mmap

import (
	"io"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/hupe1980/mmapbits/internal/fs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenForWrite_FallbackPresize(t *testing.T) {
	ffs := fs.NewFaultyFS(nil)
	ffs.AddRule("fallback", fs.Fault{FailAfterBytes: -1, NoAllocate: true})

	path := filepath.Join(t.TempDir(), "fallback.bin")
	h, err := OpenForWrite(ffs, path, 255)
	require.NoError(t, err)
	require.NoError(t, h.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 255), data)
}

func TestOpenForWrite_FallbackDoesNotClobber(t *testing.T) {
	ffs := fs.NewFaultyFS(nil)
	ffs.AddRule("fallback", fs.Fault{FailAfterBytes: -1, NoAllocate: true})

	path := filepath.Join(t.TempDir(), "fallback.bin")
	require.NoError(t, os.WriteFile(path, []byte{9, 9, 9}, 0o644))

	h, err := OpenForWrite(ffs, path, 3)
	require.NoError(t, err)
	require.NoError(t, h.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte{9, 9, 9}, data)
}

func TestOpenForWrite_ClosesOnPresizeFailure(t *testing.T) {
	dir := t.TempDir()
	ffs := fs.NewFaultyFS(nil)
	ffs.AddRule("alloc-fail", fs.Fault{FailAfterBytes: -1, FailOnAllocate: true})
	ffs.AddRule("write-fail", fs.Fault{FailAfterBytes: 0, NoAllocate: true})

	t.Run("allocate", func(t *testing.T) {
		path := filepath.Join(dir, "alloc-fail.bin")
		_, err := OpenForWrite(ffs, path, 64)
		require.Error(t, err)
		assert.ErrorIs(t, err, fs.ErrInjected)

		var rerr *ResourceError
		require.ErrorAs(t, err, &rerr)
		assert.Equal(t, "fallocate", rerr.Op)
		assert.Equal(t, 1, ffs.OpenCount(path))
		assert.Equal(t, 1, ffs.CloseCount(path))
	})

	t.Run("extend", func(t *testing.T) {
		path := filepath.Join(dir, "write-fail.bin")
		_, err := OpenForWrite(ffs, path, 64)
		require.Error(t, err)

		var rerr *ResourceError
		require.ErrorAs(t, err, &rerr)
		assert.Equal(t, "write", rerr.Op)
		assert.Equal(t, 1, ffs.CloseCount(path))
	})
}

func TestOpenForWrite_OpenFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "no-such-dir", "bits.bin")
	_, err := OpenForWrite(nil, path, 16)
	require.Error(t, err)

	var rerr *ResourceError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "open", rerr.Op)
	assert.Equal(t, path, rerr.Path)
}

func TestMap_ClosesHandleOnFailure(t *testing.T) {
	ffs := fs.NewFaultyFS(nil)
	path := filepath.Join(t.TempDir(), "bits.bin")

	h, err := OpenForWrite(ffs, path, 32)
	require.NoError(t, err)
	_, err = MapReadWrite(h, 64, false)
	require.Error(t, err)

	assert.Equal(t, 1, ffs.OpenCount(path))
	assert.Equal(t, 1, ffs.CloseCount(path))
}

func TestFlush_FailClosed(t *testing.T) {
	ffs := fs.NewFaultyFS(nil)
	ffs.AddRule("sync-fail", fs.Fault{FailAfterBytes: -1, FailOnSync: true})
	path := filepath.Join(t.TempDir(), "sync-fail.bin")

	h, err := OpenForWrite(ffs, path, 16)
	require.NoError(t, err)

	err = h.Flush()
	require.Error(t, err)
	assert.ErrorIs(t, err, fs.ErrInjected)

	var rerr *ResourceError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "flush", rerr.Op)
	assert.GreaterOrEqual(t, rerr.Fd, 0)

	assert.True(t, h.Closed())
	assert.Equal(t, 1, ffs.CloseCount(path))
	assert.ErrorIs(t, h.Close(), ErrClosed)
}

func TestClose_ProceedsWhenFlushFails(t *testing.T) {
	ffs := fs.NewFaultyFS(nil)
	ffs.AddRule("sync-fail", fs.Fault{FailAfterBytes: -1, FailOnSync: true})
	path := filepath.Join(t.TempDir(), "sync-fail.bin")

	h, err := OpenForWrite(ffs, path, 16)
	require.NoError(t, err)

	require.NoError(t, h.Close())
	assert.Equal(t, 1, ffs.CloseCount(path))
}

func TestClose_ReportsCloseFailure(t *testing.T) {
	ffs := fs.NewFaultyFS(nil)
	ffs.AddRule("close-fail", fs.Fault{FailAfterBytes: -1, FailOnClose: true})
	path := filepath.Join(t.TempDir(), "close-fail.bin")

	h, err := OpenForWrite(ffs, path, 16)
	require.NoError(t, err)

	err = h.Close()
	require.Error(t, err)
	var rerr *ResourceError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "close", rerr.Op)
	assert.True(t, h.Closed())
}

func TestMapping_ReadOnlyRejectsWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ro.bin")
	require.NoError(t, os.WriteFile(path, make([]byte, 80), 0o644))

	h, m := openRO(t, path, 80)
	defer shutdown(t, h, m)

	assert.Equal(t, ReadOnly, m.Mode())
	assert.ErrorIs(t, m.SetBits(0, 1), ErrReadOnly)
	assert.NoError(t, m.Flush())
	assert.False(t, m.Populated())
}

func TestMapping_AfterUnmap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "unmap.bin")
	h, m := openRW(t, path, 16)

	require.NoError(t, m.Unmap())
	require.NoError(t, m.Unmap(), "unmap is idempotent")
	assert.True(t, m.Closed())

	assert.Nil(t, m.Bytes())
	assert.ErrorIs(t, m.SetBits(0, 1), ErrClosed)
	_, err := m.Byte(0)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, m.Flush(), ErrClosed)
	assert.ErrorIs(t, m.Advise(AccessRandom), ErrClosed)
	_, err = m.ReadAt(make([]byte, 1), 0)
	assert.ErrorIs(t, err, ErrClosed)

	require.NoError(t, h.Close())
}

func TestMapping_UnmapFailureKeepsMapping(t *testing.T) {
	path := filepath.Join(t.TempDir(), "unmap-fail.bin")
	h, m := openRW(t, path, 16)

	release := m.unmap
	m.unmap = func([]byte) error { return syscall.EINVAL }

	err := m.Unmap()
	var re *ResourceError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "munmap", re.Op)
	assert.ErrorIs(t, err, syscall.EINVAL)

	assert.False(t, m.Closed())
	require.NotNil(t, m.Bytes())
	require.NoError(t, m.SetBits(3, 0x10))
	b, err := m.Byte(3)
	require.NoError(t, err)
	assert.Equal(t, byte(0x10), b)

	m.unmap = release
	require.NoError(t, m.Unmap())
	assert.True(t, m.Closed())
	assert.Nil(t, m.Bytes())

	require.NoError(t, h.Close())
}

func TestMapping_FlushAndAdvise(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flush.bin")
	h, m := openRW(t, path, 8192)
	defer shutdown(t, h, m)

	require.NoError(t, m.Advise(AccessRandom))
	require.NoError(t, m.SetBits(8191, 0x40))
	require.NoError(t, m.Flush())
	require.NoError(t, h.Flush())

	// The write is visible through a plain read of the file.
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	buf := make([]byte, 1)
	_, err = f.ReadAt(buf, 8191)
	require.NoError(t, err)
	assert.Equal(t, byte(0x40), buf[0])
}

func TestMapping_ReadAt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "readat.bin")
	require.NoError(t, os.WriteFile(path, []byte("Hello, Mmap!"), 0o644))

	h, m := openRO(t, path, 12)
	defer shutdown(t, h, m)

	assert.Equal(t, 12, m.Size())
	assert.Equal(t, path, m.Path())

	buf := make([]byte, 5)
	n, err := m.ReadAt(buf, 7)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "Mmap!", string(buf))

	n, err = m.ReadAt(make([]byte, 10), 100)
	assert.Equal(t, 0, n)
	assert.Equal(t, io.EOF, err)

	buf3 := make([]byte, 10)
	n, err = m.ReadAt(buf3, 7)
	assert.Equal(t, 5, n)
	assert.Equal(t, io.EOF, err)

	_, err = m.ReadAt(buf, -1)
	assert.Equal(t, ErrInvalidOffset, err)
}

func TestMapping_PartialLength(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.bin")
	h, err := OpenForWrite(nil, path, 100)
	require.NoError(t, err)

	m, err := MapReadWrite(h, 10, false)
	require.NoError(t, err)
	defer shutdown(t, h, m)

	assert.Equal(t, 10, m.Size())
	assert.ErrorIs(t, m.SetBits(10, 1), ErrOutOfBounds)
}

func TestSharedMappingVisibility(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared.bin")
	h, m := openRW(t, path, 64)
	defer shutdown(t, h, m)

	rh, rm := openRO(t, path, 64)
	defer shutdown(t, rh, rm)

	require.NoError(t, m.SetBits(9, 0x03))
	got, err := rm.Byte(9)
	require.NoError(t, err)
	assert.Equal(t, byte(0x03), got)
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "read-only", ReadOnly.String())
	assert.Equal(t, "read-write", ReadWrite.String())
	assert.Equal(t, "unknown", Mode(9).String())
}
