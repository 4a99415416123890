// Package mmapbits provides a fixed-size bit array stored in a memory-mapped file.
//
// A Store maps its backing file as a shared mapping, so a set bit is a
// single OR into page-cache memory and becomes visible to every other
// mapping of the same file immediately. Durability is explicit: Flush writes
// the mapped pages back and syncs the file data.
//
// # Quick Start
//
//	s, err := mmapbits.Create("bits.bin", 1<<20)
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	_ = s.SetBit(42)
//	if err := s.Flush(); err != nil {
//	    return err // the store is already closed
//	}
//
// Readers open the same file with Open, which maps it read-only:
//
//	r, _ := mmapbits.Open("bits.bin")
//	ok, _ := r.Test(42)
//
// # Bulk Loading
//
// Load, LoadFile and LoadBlob feed one record per line through a
// loader.Strategy. AddressStrategy reads "<byte-index> <mask>" pairs;
// BitStrategy reads one bit position per line:
//
//	stats, err := s.LoadFile(ctx, "positions.txt", loader.BitStrategy())
//
// # Snapshots
//
// Export writes a compressed, checksummed copy of the store to any
// blobstore.BlobStore (local, memory, S3, MinIO). Import ORs a snapshot
// back in, never clearing bits:
//
//	store := blobstore.NewLocalStore("./snapshots")
//	_ = s.Export(ctx, store, "daily.snap")
//	_, _ = other.Import(ctx, store, "daily.snap")
//
// # Failure Model
//
// Opening and mapping fail closed: on error no descriptor stays open and
// no budget stays reserved. A failed Flush tears the store down. Errors from
// the OS are reported as *ResourceError carrying the operation, path and
// descriptor; out-of-range indexes as *RangeError.
//
// # Resource Limits
//
// A resource.Controller shared through WithResourceController bounds the
// bytes held in live mappings, the number of concurrent loads and the IO
// rate of loads and snapshots.
package mmapbits
