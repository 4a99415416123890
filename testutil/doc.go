// Package testutil provides testing utilities for mmapbits.
//
// This package is intended for use in tests and benchmarks only.
// It provides helpers for generating reproducible bit positions, rendering
// them as loader input, and computing the exact byte image a store must
// hold afterwards.
//
// # Random Positions
//
//	rng := testutil.NewRNG(seed)
//	uniform := rng.BitPositions(1000, 8*size)       // may repeat
//	hot := rng.ZipfPositions(1000, 8*size, 1.5)     // skewed toward low bytes
//
// # Ground Truth
//
//	want := testutil.ExpectedBytes(uniform, size)
//	input := testutil.BitRecords(uniform)           // for loader.BitStrategy
package testutil
