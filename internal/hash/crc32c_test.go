package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCRC32C_KnownValue(t *testing.T) {
	// RFC 3720 B.4: 32 bytes of zeros.
	assert.Equal(t, uint32(0x8a9136aa), CRC32C(make([]byte, 32)))
}

func TestCRC32C_Streaming(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")

	h := NewCRC32C()
	_, _ = h.Write(data[:10])
	_, _ = h.Write(data[10:])
	assert.Equal(t, CRC32C(data), h.Sum32())
}

func TestVerify(t *testing.T) {
	data := []byte{0x01, 0x80, 0xff}
	sum := CRC32C(data)
	require.NoError(t, Verify(data, sum))

	data[1] |= 0x01
	err := Verify(data, sum)
	assert.ErrorIs(t, err, ErrChecksumMismatch)
}
