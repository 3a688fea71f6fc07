// Package testutil provides testing utilities for rangeload.
//
// This package is intended for use in tests and benchmarks only.
// It provides a seeded random source for generating scroll windows and
// intervals, and a plain boolean-array reference set used to verify range
// set operations on small universes.
//
// # Random Windows
//
//	rng := testutil.NewRNG(seed)
//	spans := rng.Spans(20, 500, 40) // 20 spans inside [0,500), each up to 40 long
//
// # Reference Set
//
//	ref := testutil.NewBoolSet(500)
//	for _, sp := range spans {
//	    ref.Mark(sp.From, sp.To)
//	}
//	want := ref.Runs() // minimal ascending runs
package testutil
