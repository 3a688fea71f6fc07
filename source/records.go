package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/hupe1980/rangeload/blobstore"
)

// DecodeFunc decodes one fixed-width record.
type DecodeFunc[T any] func(record []byte) (T, error)

// EncodeFunc encodes v into the fixed-width record dst.
type EncodeFunc[T any] func(dst []byte, v T) error

// Records reads fixed-width records stored back to back in one blob.
//
// The blob is opened on first use and kept open until Close.
type Records[T any] struct {
	store      blobstore.Store
	name       string
	recordSize int
	decode     DecodeFunc[T]

	mu   sync.Mutex
	blob blobstore.Blob
}

// NewRecords creates a record source over the blob name in store.
func NewRecords[T any](store blobstore.Store, name string, recordSize int, decode DecodeFunc[T]) *Records[T] {
	return &Records[T]{
		store:      store,
		name:       name,
		recordSize: recordSize,
		decode:     decode,
	}
}

func (r *Records[T]) open(ctx context.Context) (blobstore.Blob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.blob != nil {
		return r.blob, nil
	}
	b, err := r.store.Open(ctx, r.name)
	if err != nil {
		return nil, fmt.Errorf("source: open %s: %w", r.name, err)
	}
	r.blob = b
	return b, nil
}

// Len returns the number of records in the blob.
func (r *Records[T]) Len(ctx context.Context) (uint64, error) {
	b, err := r.open(ctx)
	if err != nil {
		return 0, err
	}
	return uint64(b.Size()) / uint64(r.recordSize), nil
}

// Fetch reads the records of [from, to] with one ranged read.
func (r *Records[T]) Fetch(ctx context.Context, from, to uint64) ([]T, error) {
	if r.recordSize <= 0 {
		return nil, fmt.Errorf("source: invalid record size %d", r.recordSize)
	}
	if from > to {
		return nil, nil
	}

	b, err := r.open(ctx)
	if err != nil {
		return nil, err
	}

	total := uint64(b.Size()) / uint64(r.recordSize)
	if from >= total {
		return nil, nil
	}
	to = min(to, total-1)

	size := uint64(r.recordSize)
	count := to - from + 1
	if from > math.MaxInt64/size || count > math.MaxInt/size {
		return nil, ErrOutOfRange
	}

	buf := make([]byte, count*size)
	n, err := b.ReadAt(ctx, buf, int64(from*size))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("source: read %s [%d,%d]: %w", r.name, from, to, err)
	}

	out := make([]T, 0, n/r.recordSize)
	for off := 0; off+r.recordSize <= n; off += r.recordSize {
		v, err := r.decode(buf[off : off+r.recordSize])
		if err != nil {
			return nil, fmt.Errorf("source: decode record %d: %w", from+uint64(off/r.recordSize), err)
		}
		out = append(out, v)
	}
	return out, nil
}

// Close releases the blob handle. A later Fetch opens it again.
func (r *Records[T]) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.blob == nil {
		return nil
	}
	err := r.blob.Close()
	r.blob = nil
	return err
}

// WriteRecords encodes items as fixed-width records and stores them as name.
func WriteRecords[T any](ctx context.Context, w blobstore.Writer, name string, recordSize int, items []T, encode EncodeFunc[T]) error {
	if recordSize <= 0 {
		return fmt.Errorf("source: invalid record size %d", recordSize)
	}
	buf := make([]byte, len(items)*recordSize)
	for i, v := range items {
		if err := encode(buf[i*recordSize:(i+1)*recordSize], v); err != nil {
			return fmt.Errorf("source: encode record %d: %w", i, err)
		}
	}
	return w.Put(ctx, name, buf)
}
