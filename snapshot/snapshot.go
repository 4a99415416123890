package snapshot

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/hupe1980/mmapbits/blobstore"
	"github.com/hupe1980/mmapbits/internal/conv"
	"github.com/hupe1980/mmapbits/internal/hash"
	"github.com/hupe1980/mmapbits/loader"
	"github.com/hupe1980/mmapbits/resource"
)

// Magic identifies a snapshot blob.
const Magic = "MBS1"

// HeaderSize is the fixed snapshot header length:
// magic[4] | codec u8 | rawLen u64 | crc32c u32, little-endian.
const HeaderSize = 4 + 1 + 8 + 4

var (
	// ErrCorrupt is returned for a blob that is not a well-formed snapshot.
	ErrCorrupt = errors.New("snapshot: corrupt")
	// ErrSizeMismatch is returned by Apply when the snapshot is larger than the target.
	ErrSizeMismatch = errors.New("snapshot: size mismatch")
)

// Options configures snapshot IO.
type Options struct {
	// Codec compresses the payload on Write. Default: CodecZstd.
	Codec Codec

	// Controller rate limits uploads. Optional.
	Controller *resource.Controller

	// Logger receives a record per snapshot. Default: discard.
	Logger *slog.Logger
}

// DefaultOptions are used when no option functions are given.
var DefaultOptions = Options{
	Codec: CodecZstd,
}

// WithCodec sets the payload codec.
func WithCodec(c Codec) func(*Options) {
	return func(o *Options) { o.Codec = c }
}

// WithController sets the resource controller.
func WithController(rc *resource.Controller) func(*Options) {
	return func(o *Options) { o.Controller = rc }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) func(*Options) {
	return func(o *Options) { o.Logger = l }
}

func buildOptions(optFns []func(*Options)) Options {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return opts
}

// Header is the decoded snapshot header.
type Header struct {
	Codec  Codec
	RawLen uint64
	CRC32C uint32 // of the uncompressed region
}

// Encode returns a complete snapshot of data.
func Encode(data []byte, codec Codec) ([]byte, error) {
	payload, used, err := compress(data, codec)
	if err != nil {
		return nil, err
	}

	out := make([]byte, HeaderSize+len(payload))
	copy(out, Magic)
	out[4] = byte(used)
	binary.LittleEndian.PutUint64(out[5:], uint64(len(data)))
	binary.LittleEndian.PutUint32(out[13:], hash.CRC32C(data))
	copy(out[HeaderSize:], payload)
	return out, nil
}

// DecodeHeader parses the header at the start of b.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("%w: %d bytes is shorter than the header", ErrCorrupt, len(b))
	}
	if !bytes.Equal(b[:4], []byte(Magic)) {
		return Header{}, fmt.Errorf("%w: bad magic %q", ErrCorrupt, b[:4])
	}
	return Header{
		Codec:  Codec(b[4]),
		RawLen: binary.LittleEndian.Uint64(b[5:]),
		CRC32C: binary.LittleEndian.Uint32(b[13:]),
	}, nil
}

// rawLen checks RawLen against what a payload of payloadLen bytes can
// decode to, so a damaged header never sizes an allocation.
func (h Header) rawLen(payloadLen int) (int, error) {
	limit, err := maxRawLen(h.Codec, payloadLen)
	if err != nil {
		return 0, err
	}
	if h.Codec == CodecNone && h.RawLen != limit {
		return 0, fmt.Errorf("%w: payload %d bytes, header says %d", ErrCorrupt, payloadLen, h.RawLen)
	}
	if h.RawLen > limit {
		return 0, fmt.Errorf("%w: %s payload of %d bytes cannot hold %d bytes", ErrCorrupt, h.Codec, payloadLen, h.RawLen)
	}
	n, err := conv.Uint64ToInt(h.RawLen)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return n, nil
}

// Decode validates a snapshot and returns the region it holds.
func Decode(b []byte) ([]byte, error) {
	h, err := DecodeHeader(b)
	if err != nil {
		return nil, err
	}
	payload := b[HeaderSize:]
	rawLen, err := h.rawLen(len(payload))
	if err != nil {
		return nil, err
	}
	data, err := decompress(payload, h.Codec, rawLen)
	if err != nil {
		return nil, err
	}
	if err := hash.Verify(data, h.CRC32C); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return data, nil
}

// Write stores a snapshot of data under name. The blob appears only if the
// whole snapshot was written.
func Write(ctx context.Context, store blobstore.BlobStore, name string, data []byte, optFns ...func(*Options)) error {
	opts := buildOptions(optFns)

	snap, err := Encode(data, opts.Codec)
	if err != nil {
		return err
	}

	w, err := store.Create(ctx, name)
	if err != nil {
		return fmt.Errorf("snapshot: create %s: %w", name, err)
	}
	rw := resource.NewRateLimitedWriter(ctx, w, opts.Controller)
	if _, err := rw.Write(snap); err != nil {
		_ = w.Abort()
		return fmt.Errorf("snapshot: write %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("snapshot: commit %s: %w", name, err)
	}

	opts.Logger.Info("snapshot written",
		"name", name,
		"codec", Codec(snap[4]).String(),
		"raw_bytes", len(data),
		"stored_bytes", len(snap),
	)
	return nil
}

// Read loads and validates the snapshot stored under name.
func Read(ctx context.Context, store blobstore.BlobStore, name string) ([]byte, error) {
	blob, err := store.Open(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("snapshot: open %s: %w", name, err)
	}
	defer func() { _ = blob.Close() }()

	b, err := blobstore.ReadAll(ctx, blob)
	if err != nil {
		return nil, fmt.Errorf("snapshot: read %s: %w", name, err)
	}
	data, err := Decode(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return data, nil
}

// Apply ORs the snapshot stored under name into w, one SetBits call per
// non-zero byte. Bits already set in w stay set. size is the capacity of w
// in bytes; a larger snapshot is rejected before anything is written.
// It returns the number of bytes merged.
func Apply(ctx context.Context, store blobstore.BlobStore, name string, w loader.BitWriter, size int64) (int64, error) {
	blob, err := store.Open(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("snapshot: open %s: %w", name, err)
	}
	defer func() { _ = blob.Close() }()

	hdr := make([]byte, HeaderSize)
	n, err := blob.ReadAt(ctx, hdr, 0)
	if err != nil && !(errors.Is(err, io.EOF) && n == HeaderSize) {
		if errors.Is(err, io.EOF) {
			err = fmt.Errorf("%w: %d bytes is shorter than the header", ErrCorrupt, n)
		}
		return 0, fmt.Errorf("snapshot: read %s: %w", name, err)
	}
	h, err := DecodeHeader(hdr)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	if size < 0 || h.RawLen > uint64(size) {
		return 0, fmt.Errorf("%w: snapshot holds %d bytes, target has %d", ErrSizeMismatch, h.RawLen, size)
	}

	b, err := blobstore.ReadAll(ctx, blob)
	if err != nil {
		return 0, fmt.Errorf("snapshot: read %s: %w", name, err)
	}
	data, err := Decode(b)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}

	var merged int64
	for i, b := range data {
		if b == 0 {
			continue
		}
		if err := w.SetBits(int64(i), b); err != nil {
			return merged, err
		}
		merged++
	}
	return merged, nil
}
