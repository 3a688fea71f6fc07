// Package blobstore provides ranged read access to the immutable blobs that
// back a list's fetch source.
//
// A fetch for one batch of items turns into one ranged read, so every
// implementation serves ReadAt without loading the whole blob.
//
// # Built-in Implementations
//
//   - MemoryStore: in-process blobs, for tests and examples
//   - LocalStore: local files read through a read-only memory mapping
//   - minio.Store: MinIO and S3-compatible services via ranged GETs
//   - s3.Store: Amazon S3 via ranged GETs
//
// CachingStore wraps any Store with a block cache so that batches whose byte
// ranges share a block do not read it twice.
//
// # Custom Implementations
//
//	type Store interface {
//	    Open(ctx, name) (Blob, error)
//	}
//
//	type Blob interface {
//	    ReadAt(ctx, p, off) (int, error)
//	    Size() int64
//	    Close() error
//	}
//
// Implementations must be safe for concurrent use.
package blobstore
