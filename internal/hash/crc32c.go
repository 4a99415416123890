package hash

import (
	"errors"
	"fmt"
	"hash"
	"hash/crc32"
)

// ErrChecksumMismatch is returned by Verify when data does not match its checksum.
var ErrChecksumMismatch = errors.New("checksum mismatch")

var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// CRC32C computes the CRC32-Castagnoli checksum of data.
func CRC32C(data []byte) uint32 {
	return crc32.Checksum(data, crc32cTable)
}

// NewCRC32C returns a new streaming CRC32-Castagnoli hash.Hash32.
func NewCRC32C() hash.Hash32 {
	return crc32.New(crc32cTable)
}

// Verify checks data against a stored CRC32C checksum.
func Verify(data []byte, want uint32) error {
	if got := CRC32C(data); got != want {
		return fmt.Errorf("%w: got %08x, want %08x", ErrChecksumMismatch, got, want)
	}
	return nil
}
