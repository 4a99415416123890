// Package blobstore provides the storage abstraction for load inputs and
// snapshots of a bit store.
//
// BlobStore is the interface for reading and writing immutable blobs.
// Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - LocalStore: local filesystem; reads go through read-only mappings,
//     writes go to a temporary file renamed into place on Close
//   - MemoryStore: in-process, for tests
//   - s3.Store: Amazon S3 with range reads and multipart uploads
//   - minio.Store: MinIO and other S3-compatible services
//
// # Custom Implementations
//
//	type BlobStore interface {
//	    Open(ctx, name) (Blob, error)            // Open for reading
//	    Create(ctx, name) (WritableBlob, error)  // Create for writing
//	    Put(ctx, name, data) error               // Atomic write
//	    Delete(ctx, name) error
//	    List(ctx, prefix) ([]string, error)
//	}
//
// Remote backends implement ReadRange with a ranged GET so that a loader
// can stream a large input without buffering it.
package blobstore
