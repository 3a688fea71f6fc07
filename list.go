package rangeload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/hupe1980/rangeload/codec"
	"github.com/hupe1980/rangeload/itemcache"
	"github.com/hupe1980/rangeload/loader"
	"github.com/hupe1980/rangeload/rangeset"
	"github.com/hupe1980/rangeload/source"
)

// Interval is an inclusive range of indices.
type Interval = rangeset.Interval

// CacheStats is a point-in-time view of the item cache.
type CacheStats = itemcache.Stats

type generationKey struct{}

// List is one subscription to a lazily loaded collection.
//
// All methods are safe for concurrent use.
type List[T any] struct {
	mu        sync.Mutex
	query     string
	forceNext bool
	gen       uint64
	genCtx    context.Context
	cancelGen context.CancelFunc
	closed    bool

	src       source.Source[T]
	loader    *loader.Loader
	cache     *itemcache.Cache[T]
	batchSize uint64

	codec   codec.Codec
	logger  *Logger
	metrics MetricsCollector
}

// New creates a List that fetches items from src.
//
// The first request after New or a reset is forced: it fetches the whole
// window without consulting the item cache.
func New[T any](src source.Source[T], optFns ...Option) (*List[T], error) {
	o := applyOptions(optFns)
	if o.batchSize == 0 {
		return nil, ErrInvalidBatchSize
	}

	logger := o.logger
	if o.name != "" {
		logger = logger.WithSubscription(o.name)
	}

	l := &List[T]{
		forceNext: true,
		src:       src,
		batchSize: o.batchSize,
		codec:     o.codec,
		logger:    logger,
		metrics:   o.metricsCollector,
	}
	l.genCtx, l.cancelGen = context.WithCancel(context.Background())

	cacheOpts := []itemcache.Option[T]{
		itemcache.WithMaxItems[T](o.maxItems),
		itemcache.WithController[T](o.controller),
		itemcache.WithLogger[T](logger.Logger),
	}
	if n := o.itemBytes; n > 0 {
		cacheOpts = append(cacheOpts, itemcache.WithSizer(func(T) int64 { return n }))
	}
	if o.reopenOnEvict {
		cacheOpts = append(cacheOpts, itemcache.WithOnEvict[T](l.reopen))
	}
	c, err := itemcache.New(o.batchSize, cacheOpts...)
	if err != nil {
		return nil, translateError(err)
	}
	l.cache = c

	l.loader = loader.New(l.fetch,
		loader.WithBatchSize(o.batchSize),
		loader.WithItemLoaded(c.IsLoaded),
		loader.WithLogger(logger.Logger),
		loader.WithObserver(planObserver{mc: o.metricsCollector}),
		loader.WithController(o.controller),
		loader.WithMaxConcurrentFetches(o.maxConcurrent),
	)
	return l, nil
}

// Request makes sure every batch overlapping the inclusive window
// [start, stop] has been requested, fetching those that were not, and waits
// for the fetches to return.
//
// Batches requested before are never fetched again, even if their fetch is
// still running or has failed. A window with start > stop is a no-op.
//
// The error combines every failed fetch (see FetchErrors). If the List is
// reset while the fetches run, they are cancelled and Request returns an
// error wrapping ErrReset.
func (l *List[T]) Request(ctx context.Context, start, stop uint64) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	force := false
	if start <= stop && l.forceNext {
		force = true
		l.forceNext = false
	}
	gen := l.gen

	fctx, cancel := context.WithCancel(context.WithValue(ctx, generationKey{}, gen))
	defer cancel()
	release := context.AfterFunc(l.genCtx, cancel)
	defer release()

	begin := time.Now()
	p := l.loader.Start(fctx, start, stop, force)
	l.mu.Unlock()

	err := p.Wait()
	if err != nil && errors.Is(err, context.Canceled) && l.Generation() != gen {
		err = fmt.Errorf("%w: %w", ErrReset, err)
	} else {
		err = translateError(err)
	}

	runs := len(p.Runs())
	l.metrics.RecordRequest(runs, time.Since(begin), err)
	l.logger.LogRequest(ctx, start, stop, runs, err)
	return err
}

// fetch retrieves [from, to] from the source and caches the result unless
// the List was reset meanwhile.
func (l *List[T]) fetch(ctx context.Context, from, to uint64) error {
	gen, _ := ctx.Value(generationKey{}).(uint64)

	begin := time.Now()
	items, err := l.src.Fetch(ctx, from, to)
	l.metrics.RecordFetch(len(items), time.Since(begin), err)
	l.logger.LogFetch(ctx, from, to, len(items), err)
	if err != nil {
		return err
	}
	if len(items) > 0 && uint64(len(items)-1) > to-from {
		items = items[:to-from+1]
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if gen != l.gen {
		l.metrics.RecordDiscard(len(items))
		l.logger.LogDiscard(ctx, from, to, len(items))
		return nil
	}
	l.cache.Put(from, items)
	return nil
}

// reopen is the eviction hook installed by WithReopenOnEvict.
func (l *List[T]) reopen(from, to uint64) {
	l.loader.Invalidate(from, to)
}

// SetQuery sets the identity of the query behind the list and resets the
// List if it differs from the current one. It reports whether a reset
// happened.
func (l *List[T]) SetQuery(identity string) bool {
	l.mu.Lock()
	if l.query == identity {
		l.mu.Unlock()
		return false
	}
	l.query = identity
	gen := l.resetLocked()
	l.mu.Unlock()

	l.metrics.RecordReset()
	l.logger.LogReset(context.Background(), gen, "query changed")
	return true
}

// Query returns the current query identity.
func (l *List[T]) Query() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.query
}

// Reset discards the fetch history and the cached items. Fetches still
// running are cancelled; whatever they return is dropped.
func (l *List[T]) Reset() {
	l.mu.Lock()
	gen := l.resetLocked()
	l.mu.Unlock()

	l.metrics.RecordReset()
	l.logger.LogReset(context.Background(), gen, "reset")
}

func (l *List[T]) resetLocked() uint64 {
	l.gen++
	l.cancelGen()
	l.genCtx, l.cancelGen = context.WithCancel(context.Background())
	l.loader.Reset()
	l.cache.Clear()
	l.forceNext = true
	return l.gen
}

// Generation returns the number of resets so far.
func (l *List[T]) Generation() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.gen
}

// Invalidate forgets that the batches overlapping [from, to] were requested
// and drops their cached items, so the next overlapping request fetches them
// again.
func (l *List[T]) Invalidate(from, to uint64) {
	if from > to {
		return
	}
	b := l.batchSize
	lo, hi := from/b*b, to/b*b
	if hi > math.MaxUint64-(b-1) {
		hi = math.MaxUint64
	} else {
		hi += b - 1
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.cache.Evict(lo, hi)
	l.loader.Invalidate(lo, hi)
}

// Item returns the cached item at index i.
func (l *List[T]) Item(i uint64) (T, bool) {
	return l.cache.Get(i)
}

// IsLoaded reports whether the item at index i is cached.
func (l *List[T]) IsLoaded(i uint64) bool {
	return l.cache.IsLoaded(i)
}

// Items returns the cached items of [from, to] up to the first missing one.
func (l *List[T]) Items(from, to uint64) []T {
	return l.cache.Slice(from, to)
}

// Range calls fn for every cached item of [from, to] in ascending order until
// fn returns false.
func (l *List[T]) Range(from, to uint64, fn func(i uint64, item T) bool) {
	l.cache.Range(from, to, fn)
}

// Coverage returns the item ranges requested so far, batch aligned and in
// ascending order.
func (l *List[T]) Coverage() []Interval {
	return l.loader.Coverage()
}

// BatchSize returns the number of items per fetch.
func (l *List[T]) BatchSize() uint64 {
	return l.batchSize
}

// CacheStats returns statistics of the item cache.
func (l *List[T]) CacheStats() CacheStats {
	return l.cache.Stats()
}

type snapshot[T any] struct {
	Query     string            `json:"query"`
	BatchSize uint64            `json:"batch_size"`
	Coverage  []byte            `json:"coverage"`
	Items     []snapshotItem[T] `json:"items,omitempty"`
}

type snapshotItem[T any] struct {
	Index uint64 `json:"i"`
	Value T      `json:"v"`
}

// Snapshot encodes the query identity, the coverage and the cached items
// with the configured codec.
func (l *List[T]) Snapshot() ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, ErrClosed
	}

	ls := l.loader.Snapshot()
	cov, err := ls.Batches.MarshalBinary()
	if err != nil {
		return nil, err
	}
	s := snapshot[T]{
		Query:     l.query,
		BatchSize: ls.BatchSize,
		Coverage:  cov,
	}
	l.cache.Range(0, math.MaxUint64, func(i uint64, v T) bool {
		s.Items = append(s.Items, snapshotItem[T]{Index: i, Value: v})
		return true
	})
	return l.codec.Marshal(s)
}

// Restore replaces the state of the List with a snapshot. Fetches still
// running are treated as after a reset. The next request is not forced, so
// restored items are not fetched again.
func (l *List[T]) Restore(data []byte) error {
	var s snapshot[T]
	if err := l.codec.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}
	if s.BatchSize != l.batchSize {
		return fmt.Errorf("%w: snapshot %d, list %d", ErrBatchSizeMismatch, s.BatchSize, l.batchSize)
	}
	var batches rangeset.Set
	if err := batches.UnmarshalBinary(s.Coverage); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	gen := l.resetLocked()
	if err := l.loader.Restore(loader.Snapshot{BatchSize: s.BatchSize, Batches: batches}); err != nil {
		l.mu.Unlock()
		return translateError(err)
	}
	for lo := 0; lo < len(s.Items); {
		hi := lo + 1
		for hi < len(s.Items) && s.Items[hi].Index == s.Items[hi-1].Index+1 {
			hi++
		}
		run := make([]T, 0, hi-lo)
		for _, it := range s.Items[lo:hi] {
			run = append(run, it.Value)
		}
		l.cache.Put(s.Items[lo].Index, run)
		lo = hi
	}
	l.query = s.Query
	l.forceNext = false
	l.mu.Unlock()

	l.logger.LogReset(context.Background(), gen, "restore")
	return nil
}

// Close rejects further requests, waits for running fetches to return and
// closes the source if it is an io.Closer.
func (l *List[T]) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()

	err := l.loader.Close()

	l.mu.Lock()
	l.cancelGen()
	l.mu.Unlock()

	if c, ok := l.src.(io.Closer); ok {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
