// Package rangeload loads large or unbounded ordered collections batch by
// batch as a viewport scrolls over them.
//
// A List owns one subscription to a collection: a source that fetches
// inclusive index ranges, a loader that records which batches have already
// been requested, and a cache holding the items that arrived. The viewport
// reports the window of potentially visible indices; the List fetches every
// batch of the window that was never requested before, exactly once.
//
// # Quick Start
//
//	src := source.Func[Row](func(ctx context.Context, from, to uint64) ([]Row, error) {
//	    return api.ListRows(ctx, from, to-from+1)
//	})
//
//	l, _ := rangeload.New(src,
//	    rangeload.WithBatchSize(50),
//	    rangeload.WithMaxItems(5000),
//	    rangeload.WithReopenOnEvict(true),
//	)
//	defer l.Close()
//
//	// on mount, scroll and resize
//	if err := l.Request(ctx, first, last); err != nil {
//	    for _, fe := range rangeload.FetchErrors(err) {
//	        log.Printf("rows %d-%d: %v", fe.From, fe.To, fe.Err)
//	    }
//	}
//	row, ok := l.Item(first)
//
// # Query Changes
//
// When the query behind the list changes, the fetch history no longer
// applies. SetQuery compares the new identity with the current one and resets
// the List on a change: coverage and cached items are dropped, fetches still
// running are cancelled and their results discarded, and the next request
// ignores the cache when planning.
//
// # Failures
//
// A batch is recorded as requested before it is fetched, so concurrent
// requests never fetch it twice. A failed batch therefore stays recorded and
// is not retried by later requests; call Reset or Invalidate to fetch it
// again.
//
// # Sources
//
// Package source adapts functions, slices, fixed-size record blobs and
// compressed page blobs to the Source interface. Blobs come from package
// blobstore: memory, a local directory, S3 or MinIO, optionally behind a
// block cache.
package rangeload
