// Package conv provides checked integer conversions.
//
// Mapping lengths arrive as int64 file sizes and snapshot headers carry
// uint64 lengths, while slices are indexed by int. These helpers reject
// values that would wrap instead of truncating them silently.
package conv
