package itemcache

import (
	"cmp"
	"container/list"
	"errors"
	"log/slog"
	"math"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/hupe1980/rangeload/internal/resource"
)

// ErrInvalidPageSize is returned by New for a page size of 0.
var ErrInvalidPageSize = errors.New("itemcache: page size must be positive")

// Stats is a point-in-time view of cache activity.
type Stats struct {
	Items     uint64
	Pages     int
	Bytes     int64
	Hits      int64
	Misses    int64
	Evictions int64
	Rejected  int64
}

type slot[T any] struct {
	v    T
	size int64
}

// page holds the cached items of one page keyed by their offset in it.
type page[T any] struct {
	index uint64
	items map[uint64]slot[T]
	bytes int64
}

// Cache stores items by index. It is safe for concurrent use.
type Cache[T any] struct {
	mu       sync.Mutex
	pageSize uint64
	pages    map[uint64]*list.Element
	lru      *list.List
	present  *roaring64.Bitmap
	bytes    int64

	maxItems uint64
	sizer    func(T) int64
	onEvict  func(from, to uint64)
	rc       *resource.Controller
	logger   *slog.Logger

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
	rejected  atomic.Int64
}

// New creates a cache whose pages hold pageSize items each.
func New[T any](pageSize uint64, optFns ...Option[T]) (*Cache[T], error) {
	if pageSize == 0 {
		return nil, ErrInvalidPageSize
	}

	var o options[T]
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}

	return &Cache[T]{
		pageSize: pageSize,
		pages:    make(map[uint64]*list.Element),
		lru:      list.New(),
		present:  roaring64.New(),
		maxItems: o.maxItems,
		sizer:    o.sizer,
		onEvict:  o.onEvict,
		rc:       o.rc,
		logger:   o.logger,
	}, nil
}

// PageSize returns the number of items per page.
func (c *Cache[T]) PageSize() uint64 {
	return c.pageSize
}

// Put stores items at consecutive indices starting at from. Items beyond the
// top of the index range are dropped. When the memory budget denies an item
// even after evicting other pages, the item is not cached.
//
// If the put pushes the cache over its item budget, least recently used pages
// are evicted; a put larger than the whole budget keeps only its last page.
func (c *Cache[T]) Put(from uint64, items []T) {
	if len(items) == 0 {
		return
	}
	if n := math.MaxUint64 - from; uint64(len(items)-1) > n {
		items = items[:n+1]
	}

	c.mu.Lock()
	var evicted []evictedRange
	for k, v := range items {
		i := from + uint64(k)
		evicted = c.putLocked(i, v, evicted)
	}
	for c.maxItems > 0 && c.present.GetCardinality() > c.maxItems && c.lru.Len() > 1 {
		evicted = append(evicted, c.removePage(c.lru.Back()))
	}
	c.mu.Unlock()

	c.notify(evicted)
}

func (c *Cache[T]) putLocked(i uint64, v T, evicted []evictedRange) []evictedRange {
	p := c.pageFor(i, true)
	off := i - p.index*c.pageSize

	var size int64
	if c.sizer != nil {
		size = c.sizer(v)
	}
	delta := size - p.items[off].size
	if delta > 0 && c.rc != nil {
		for !c.rc.TryAcquireMemory(delta) {
			victim := c.lru.Back()
			if victim == nil || victim.Value.(*page[T]) == p {
				c.rejected.Add(1)
				c.logger.Debug("item rejected by memory budget", "index", i, "bytes", size)
				return evicted
			}
			evicted = append(evicted, c.removePage(victim))
		}
	} else if delta < 0 && c.rc != nil {
		c.rc.ReleaseMemory(-delta)
	}

	c.present.Add(i)
	p.items[off] = slot[T]{v: v, size: size}
	p.bytes += delta
	c.bytes += delta
	return evicted
}

// pageFor returns the page holding index i and marks it most recently used.
func (c *Cache[T]) pageFor(i uint64, create bool) *page[T] {
	idx := i / c.pageSize
	if el, ok := c.pages[idx]; ok {
		c.lru.MoveToFront(el)
		return el.Value.(*page[T])
	}
	if !create {
		return nil
	}
	p := &page[T]{
		index: idx,
		items: make(map[uint64]slot[T]),
	}
	c.pages[idx] = c.lru.PushFront(p)
	return p
}

// Get returns the item at index i.
func (c *Cache[T]) Get(i uint64) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	if !c.present.Contains(i) {
		c.misses.Add(1)
		return zero, false
	}
	c.hits.Add(1)
	p := c.pageFor(i, false)
	return p.items[i-p.index*c.pageSize].v, true
}

// IsLoaded reports whether the item at index i is cached. Unlike Get it does
// not affect recency or statistics.
func (c *Cache[T]) IsLoaded(i uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.present.Contains(i)
}

// Range calls fn for every cached item in [from, to] in ascending order until
// fn returns false.
func (c *Cache[T]) Range(from, to uint64, fn func(i uint64, v T) bool) {
	if from > to {
		return
	}

	c.mu.Lock()
	type kv struct {
		i uint64
		v T
	}
	var out []kv
	it := c.present.Iterator()
	it.AdvanceIfNeeded(from)
	for it.HasNext() {
		i := it.Next()
		if i > to {
			break
		}
		p := c.pageFor(i, false)
		out = append(out, kv{i, p.items[i-p.index*c.pageSize].v})
	}
	c.mu.Unlock()

	for _, e := range out {
		if !fn(e.i, e.v) {
			return
		}
	}
}

// Slice returns the cached items of [from, to] up to the first missing index.
func (c *Cache[T]) Slice(from, to uint64) []T {
	var out []T
	next := from
	c.Range(from, to, func(i uint64, v T) bool {
		if i != next {
			return false
		}
		out = append(out, v)
		next++
		return next != 0
	})
	return out
}

// Evict removes the items of [from, to]. Pages left empty are dropped and
// reported to the eviction hook.
//
// Only pages currently held are visited, so the cost does not depend on the
// width of the range.
func (c *Cache[T]) Evict(from, to uint64) {
	if from > to {
		return
	}
	first, last := from/c.pageSize, to/c.pageSize

	c.mu.Lock()
	var evicted []evictedRange
	for idx, el := range c.pages {
		if idx < first || idx > last {
			continue
		}
		lo, hi := c.pageBounds(idx)
		if lo >= from && hi <= to {
			evicted = append(evicted, c.removePage(el))
			continue
		}
		if c.evictItems(el.Value.(*page[T]), max(lo, from), min(hi, to)) {
			evicted = append(evicted, c.removePage(el))
		}
	}
	c.mu.Unlock()

	slices.SortFunc(evicted, func(a, b evictedRange) int {
		return cmp.Compare(a.from, b.from)
	})
	c.notify(evicted)
}

// evictItems removes [lo, hi] from p and reports whether p is now empty.
func (c *Cache[T]) evictItems(p *page[T], lo, hi uint64) bool {
	base := p.index * c.pageSize
	for off, s := range p.items {
		if i := base + off; i < lo || i > hi {
			continue
		}
		delete(p.items, off)
		if s.size > 0 {
			p.bytes -= s.size
			c.bytes -= s.size
			c.rc.ReleaseMemory(s.size)
		}
	}
	c.removeRange(lo, hi)
	return len(p.items) == 0
}

// Clear drops every item without calling the eviction hook.
func (c *Cache[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.rc.ReleaseMemory(c.bytes)
	c.bytes = 0
	c.pages = make(map[uint64]*list.Element)
	c.lru.Init()
	c.present.Clear()
}

// Len returns the number of cached items.
func (c *Cache[T]) Len() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.present.GetCardinality()
}

// Stats returns cache statistics.
func (c *Cache[T]) Stats() Stats {
	c.mu.Lock()
	items, pages, bytes := c.present.GetCardinality(), c.lru.Len(), c.bytes
	c.mu.Unlock()

	return Stats{
		Items:     items,
		Pages:     pages,
		Bytes:     bytes,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Rejected:  c.rejected.Load(),
	}
}

type evictedRange struct{ from, to uint64 }

func (c *Cache[T]) removePage(el *list.Element) evictedRange {
	p := el.Value.(*page[T])
	c.lru.Remove(el)
	delete(c.pages, p.index)

	lo, hi := c.pageBounds(p.index)
	c.removeRange(lo, hi)
	c.bytes -= p.bytes
	c.rc.ReleaseMemory(p.bytes)
	c.evictions.Add(1)
	return evictedRange{lo, hi}
}

// removeRange clears the inclusive range [lo, hi] from the presence bitmap.
func (c *Cache[T]) removeRange(lo, hi uint64) {
	if hi == math.MaxUint64 {
		c.present.RemoveRange(lo, hi)
		c.present.Remove(hi)
		return
	}
	c.present.RemoveRange(lo, hi+1)
}

func (c *Cache[T]) pageBounds(idx uint64) (uint64, uint64) {
	lo := idx * c.pageSize
	if lo > math.MaxUint64-(c.pageSize-1) {
		return lo, math.MaxUint64
	}
	return lo, lo + c.pageSize - 1
}

func (c *Cache[T]) notify(evicted []evictedRange) {
	for _, r := range evicted {
		c.logger.Debug("page evicted", "from", r.from, "to", r.to)
		if c.onEvict != nil {
			c.onEvict(r.from, r.to)
		}
	}
}
