// Package resource implements the Controller for process-wide limits.
//
// The Controller governs three resource types:
//
//   - Mapped bytes: a budget for live mappings (non-blocking, fail-fast)
//   - Concurrency: a cap on bulk loads running at the same time
//   - IO: a token bucket for loader and snapshot streams
//
// # Mapped Bytes
//
// A store reserves its mapping size before mapping and releases it after
// unmapping:
//
//	rc := resource.NewController(resource.Config{
//	    MappedBytesLimit: 1 << 30, // 1GB of mappings
//	})
//
//	if err := rc.AcquireMapping(size); err != nil {
//	    // ErrMemoryLimitExceeded
//	}
//	defer rc.ReleaseMapping(size)
//
// # IO Rate Limiting
//
//	rc := resource.NewController(resource.Config{
//	    IOLimitBytesPerSec: 16 * 1024 * 1024,
//	})
//
//	reader := resource.NewRateLimitedReader(ctx, file, rc)
//
// # Nil Safety
//
// All methods handle a nil Controller gracefully - they become no-ops.
package resource
