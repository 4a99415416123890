// Package s3 provides an S3 implementation of the blobstore.BlobStore interface.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("bits/"),
//	    s3.WithRegion("us-east-1"),
//	)
//
//	stats, err := bits.LoadBlob(ctx, store, "inputs/batch-0001.txt", loader.AddressStrategy())
//
// # Features
//
//   - Range reads for streaming load inputs
//   - Multipart uploads for large snapshots
//   - CRC32C checksums on uploads
//   - Automatic pagination for listing
//   - Configurable prefix for multi-tenant isolation
package s3
