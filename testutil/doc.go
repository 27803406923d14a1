// Package testutil provides testing utilities for cla.
//
// This package is intended for use in tests and benchmarks only.
// It generates deterministic matrices with the value distributions the
// encodings are designed for.
//
// # Matrix Generation
//
//	rng := testutil.NewRNG(seed)
//	m := rng.LowCardinality(1000, 10, 3)   // DDC/OLE friendly
//	r := rng.Runs(1000, 4, 50, 5)          // RLE friendly
//	s := rng.Sparse(1000, 20, 0.05)        // mostly zeros
//
// # Comparison
//
//	testutil.AssertBlocksEqual(t, want, got)
//	testutil.AssertVecInDelta(t, want, got, 1e-10)
package testutil
