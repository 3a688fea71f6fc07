// Package s3 serves blobstore reads from Amazon S3.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket", "lists/")
//	if err != nil { ... }
//	src := source.NewRecords[Row](store, "rows.bin", 128, decodeRow)
//
// Every Blob.ReadAt is a single ranged GET, so one batch fetch costs one
// request. Wrap the store in blobstore.CachingStore when neighbouring batches
// share blocks.
package s3
