// Package hash provides the CRC32-Castagnoli checksum used to protect
// snapshot payloads.
//
// For one-shot checksums:
//
//	sum := hash.CRC32C(region)
//	if err := hash.Verify(region, sum); err != nil { ... }
//
// For streaming checksums:
//
//	h := hash.NewCRC32C()
//	h.Write(chunk1)
//	h.Write(chunk2)
//	sum := h.Sum32()
//
// Go's hash/crc32 uses SSE4.2 and the ARM CRC extension when available.
package hash
