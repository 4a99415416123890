// Package snapshot copies a bit store's region to a blob store and back.
//
// A snapshot is a small header followed by the (optionally compressed)
// region:
//
//	magic "MBS1" | codec u8 | raw length u64 | CRC32C u32 | payload
//
// The checksum covers the uncompressed region, so corruption in either the
// payload or the codec is caught on Read. Apply merges a snapshot into a
// live store by OR-ing bytes, which never clears a bit.
package snapshot
