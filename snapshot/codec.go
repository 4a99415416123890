package snapshot

import (
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec identifies how a snapshot payload is compressed.
type Codec uint8

const (
	// CodecNone stores the region as is.
	CodecNone Codec = 0
	// CodecLZ4 uses LZ4 block compression (fast).
	CodecLZ4 Codec = 1
	// CodecZstd uses Zstandard (better ratio on sparse regions).
	CodecZstd Codec = 2
)

// ErrUnknownCodec is returned for a codec byte this package does not know.
var ErrUnknownCodec = errors.New("snapshot: unknown codec")

func (c Codec) String() string {
	switch c {
	case CodecNone:
		return "none"
	case CodecLZ4:
		return "lz4"
	case CodecZstd:
		return "zstd"
	default:
		return fmt.Sprintf("codec(%d)", uint8(c))
	}
}

// Upper bounds on how far a payload of n bytes can expand. An LZ4 length
// byte adds at most 255 bytes of output; a zstd RLE block turns 4 bytes into
// up to 128 KiB.
const (
	maxLZ4Ratio  = 255
	maxZstdRatio = 1 << 15
)

// maxRawLen reports the largest region a payload of n bytes can decode to.
func maxRawLen(codec Codec, n int) (uint64, error) {
	switch codec {
	case CodecNone:
		return uint64(n), nil
	case CodecLZ4:
		return uint64(n) * maxLZ4Ratio, nil
	case CodecZstd:
		return uint64(n) * maxZstdRatio, nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrUnknownCodec, codec)
	}
}

// ZSTD encoder/decoder pools
var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func putZstdEncoder(enc *zstd.Encoder) {
	zstdEncoderPool.Put(enc)
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil, zstd.WithDecodeAllCapLimit(true))
	return dec
}

func putZstdDecoder(dec *zstd.Decoder) {
	zstdDecoderPool.Put(dec)
}

// compress returns the encoded payload and the codec actually used.
// Data that does not shrink is stored with CodecNone.
func compress(data []byte, codec Codec) ([]byte, Codec, error) {
	if len(data) == 0 {
		return data, CodecNone, nil
	}

	var out []byte
	switch codec {
	case CodecNone:
		return data, CodecNone, nil
	case CodecLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, CodecNone, err
		}
		out = buf[:n]
	case CodecZstd:
		enc := getZstdEncoder()
		out = enc.EncodeAll(data, nil)
		putZstdEncoder(enc)
	default:
		return nil, CodecNone, fmt.Errorf("%w: %d", ErrUnknownCodec, codec)
	}

	// n == 0 means incompressible for LZ4
	if len(out) == 0 || len(out) >= len(data) {
		return data, CodecNone, nil
	}
	return out, codec, nil
}

func decompress(payload []byte, codec Codec, rawLen int) ([]byte, error) {
	switch codec {
	case CodecNone:
		if len(payload) != rawLen {
			return nil, fmt.Errorf("%w: payload %d bytes, header says %d", ErrCorrupt, len(payload), rawLen)
		}
		return payload, nil
	case CodecLZ4:
		out := make([]byte, rawLen)
		n, err := lz4.UncompressBlock(payload, out)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		if n != rawLen {
			return nil, fmt.Errorf("%w: decompressed size mismatch", ErrCorrupt)
		}
		return out, nil
	case CodecZstd:
		dec := getZstdDecoder()
		defer putZstdDecoder(dec)

		out, err := dec.DecodeAll(payload, make([]byte, 0, rawLen))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		if len(out) != rawLen {
			return nil, fmt.Errorf("%w: decompressed size mismatch", ErrCorrupt)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCodec, codec)
	}
}
