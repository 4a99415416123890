package loader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hupe1980/mmapbits/blobstore"
	"github.com/hupe1980/mmapbits/internal/fs"
	"github.com/hupe1980/mmapbits/internal/mmap"
	"github.com/hupe1980/mmapbits/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type setCall struct {
	index int64
	mask  byte
}

type recordingWriter struct {
	calls []setCall
	err   error
}

func (w *recordingWriter) SetBits(index int64, mask byte) error {
	if w.err != nil {
		return w.err
	}
	w.calls = append(w.calls, setCall{index, mask})
	return nil
}

func TestLoad_AddressStrategy(t *testing.T) {
	input := "# header\n0 0x01\n\n7 128\r\n254 0b10000001\n3 1"
	w := &recordingWriter{}

	stats, err := Load(context.Background(), w, strings.NewReader(input), AddressStrategy())
	require.NoError(t, err)
	assert.Equal(t, int64(6), stats.Lines)
	assert.Equal(t, int64(len(input)), stats.Bytes)
	assert.Equal(t, []setCall{{0, 0x01}, {7, 0x80}, {254, 0x81}, {3, 0x01}}, w.calls)
}

func TestLoad_BitStrategy(t *testing.T) {
	w := &recordingWriter{}
	_, err := Load(context.Background(), w, strings.NewReader("0\n7\n8\n2037\n"), BitStrategy())
	require.NoError(t, err)
	assert.Equal(t, []setCall{{0, 0x01}, {0, 0x80}, {1, 0x01}, {254, 0x20}}, w.calls)
}

func TestLoad_MalformedRecord(t *testing.T) {
	tests := []struct {
		name  string
		input string
		line  int64
	}{
		{"missing mask", "1 1\n2\n", 2},
		{"extra field", "1 1 1\n", 1},
		{"mask overflow", "1 1\n2 2\n3 256\n", 3},
		{"bad index", "x 1\n", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(context.Background(), &recordingWriter{}, strings.NewReader(tt.input), AddressStrategy())
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedRecord)

			var lerr *LineError
			require.ErrorAs(t, err, &lerr)
			assert.Equal(t, tt.line, lerr.Line)
		})
	}
}

func TestLoad_LineTooLong(t *testing.T) {
	// A record of exactly the limit, terminator included, is accepted.
	ok := strings.Repeat(" ", DefaultMaxLineLength-4) + "1 1\n"
	require.Len(t, ok, DefaultMaxLineLength)
	w := &recordingWriter{}
	_, err := Load(context.Background(), w, strings.NewReader(ok), AddressStrategy())
	require.NoError(t, err)
	assert.Len(t, w.calls, 1)

	long := "1 1\n" + strings.Repeat(" ", DefaultMaxLineLength) + "2 2\n3 3\n"
	w = &recordingWriter{}
	stats, err := Load(context.Background(), w, strings.NewReader(long), AddressStrategy())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLineTooLong)

	var lerr *LineError
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, int64(2), lerr.Line)
	assert.Equal(t, int64(1), stats.Lines)
	assert.Len(t, w.calls, 1, "records after the long line are not applied")
}

func TestLoad_CustomMaxLineLength(t *testing.T) {
	_, err := Load(context.Background(), &recordingWriter{}, strings.NewReader("100 1\n"), AddressStrategy(),
		func(o *Options) { o.MaxLineLength = 4 })
	assert.ErrorIs(t, err, ErrLineTooLong)
}

func TestLoad_WriterError(t *testing.T) {
	boom := errors.New("boom")
	_, err := Load(context.Background(), &recordingWriter{err: boom}, strings.NewReader("1 1\n"), AddressStrategy())
	assert.ErrorIs(t, err, boom)
}

func TestLoad_StrategyFunc(t *testing.T) {
	var lines []string
	s := StrategyFunc(func(line []byte, _ BitWriter) error {
		lines = append(lines, string(line))
		return nil
	})
	_, err := Load(context.Background(), &recordingWriter{}, strings.NewReader("a\nb\r\n\nc"), s)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "", "c"}, lines)
}

func TestLoad_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := &recordingWriter{}
	_, err := Load(ctx, w, strings.NewReader("1 1\n"), AddressStrategy())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, w.calls)
}

func TestLoad_WithController(t *testing.T) {
	rc := resource.NewController(resource.Config{IOLimitBytesPerSec: 1 << 20})
	w := &recordingWriter{}

	_, err := Load(context.Background(), w, strings.NewReader("1 1\n2 2\n"), AddressStrategy(),
		func(o *Options) { o.Controller = rc })
	require.NoError(t, err)
	assert.Len(t, w.calls, 2)

	// The load slot was released.
	assert.True(t, rc.TryAcquireLoad())
	rc.ReleaseLoad()
}

func TestLoadFile_OpenFailureTouchesNothing(t *testing.T) {
	w := &recordingWriter{}
	_, err := LoadFile(context.Background(), nil, w, filepath.Join(t.TempDir(), "missing.txt"), AddressStrategy())
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Empty(t, w.calls)

	ffs := fs.NewFaultyFS(nil)
	ffs.AddRule("input", fs.Fault{FailAfterBytes: -1, FailOnOpen: true})
	_, err = LoadFile(context.Background(), ffs, w, "input.txt", AddressStrategy())
	assert.ErrorIs(t, err, fs.ErrInjected)
	assert.Empty(t, w.calls)
}

func TestLoadFile_IntoMapping(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "input.txt")
	require.NoError(t, os.WriteFile(input, []byte("0 0xff\n254 0x81\n"), 0o644))

	h, err := mmap.OpenForWrite(nil, filepath.Join(dir, "bits.bin"), 255)
	require.NoError(t, err)
	m, err := mmap.MapReadWrite(h, 255, false)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, m.Unmap())
		require.NoError(t, h.Close())
	}()

	stats, err := LoadFile(context.Background(), nil, m, input, AddressStrategy())
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Lines)

	for i, b := range m.Bytes() {
		switch i {
		case 0:
			assert.Equal(t, byte(0xff), b)
		case 254:
			assert.Equal(t, byte(0x81), b)
		default:
			assert.Zero(t, b)
		}
	}

	// Out of range records surface the mapping's RangeError with a line number.
	require.NoError(t, os.WriteFile(input, []byte("255 1\n"), 0o644))
	_, err = LoadFile(context.Background(), nil, m, input, AddressStrategy())
	assert.ErrorIs(t, err, mmap.ErrOutOfBounds)
	var lerr *LineError
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, int64(1), lerr.Line)
}

func TestLoadBlob(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	require.NoError(t, store.Put(ctx, "inputs/a.txt", []byte("5 4\n6 8\n")))
	require.NoError(t, store.Put(ctx, "inputs/empty.txt", nil))

	w := &recordingWriter{}
	stats, err := LoadBlob(ctx, store, "inputs/a.txt", w, AddressStrategy())
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Lines)
	assert.Equal(t, []setCall{{5, 4}, {6, 8}}, w.calls)

	stats, err = LoadBlob(ctx, store, "inputs/empty.txt", w, AddressStrategy())
	require.NoError(t, err)
	assert.Zero(t, stats.Lines)

	_, err = LoadBlob(ctx, store, "inputs/missing.txt", w, AddressStrategy())
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
	assert.Len(t, w.calls, 2)
}
