// Package loader decides which batches of a lazily-loaded list to fetch.
//
// A Loader is owned by exactly one list subscription. Whenever the window of
// potentially visible indices changes, the owner calls Request (or Start) with
// the inclusive window. The Loader then:
//
//  1. quantizes the window onto batch boundaries,
//  2. computes the batches not requested before and records them as requested,
//  3. splits them into the fewest contiguous runs,
//  4. drops leading batches the caller already holds (unless forced),
//  5. calls the fetch function once per run and joins the results.
//
// Step 2 is committed before any fetch starts, so a second Request arriving
// while the first fetch is still in flight never dispatches the same batch
// again. The flip side: a failed fetch stays recorded as requested and is not
// retried by later overlapping requests. Use Reset, Invalidate or a forced
// request after a Reset to fetch it again.
//
//	l := loader.New(fetch,
//	    loader.WithBatchSize(50),
//	    loader.WithItemLoaded(cache.IsLoaded),
//	)
//	defer l.Close()
//
//	if err := l.Request(ctx, first, last, false); err != nil {
//	    // one or more *FetchError, see multierr.Errors
//	}
package loader
