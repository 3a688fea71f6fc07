package itemcache

import (
	"log/slog"

	"github.com/hupe1980/rangeload/internal/resource"
)

type options[T any] struct {
	maxItems uint64
	sizer    func(T) int64
	onEvict  func(from, to uint64)
	rc       *resource.Controller
	logger   *slog.Logger
}

// Option configures a Cache.
type Option[T any] func(*options[T])

// WithMaxItems bounds the number of cached items. 0 means unbounded.
func WithMaxItems[T any](n uint64) Option[T] {
	return func(o *options[T]) {
		o.maxItems = n
	}
}

// WithSizer reports the memory footprint of an item in bytes. Without a
// sizer, items are not charged against the resource controller.
func WithSizer[T any](fn func(T) int64) Option[T] {
	return func(o *options[T]) {
		o.sizer = fn
	}
}

// WithOnEvict registers a hook called with the item range of every evicted
// page. The hook runs after the cache lock is released.
func WithOnEvict[T any](fn func(from, to uint64)) Option[T] {
	return func(o *options[T]) {
		o.onEvict = fn
	}
}

// WithController charges item memory against rc.
func WithController[T any](rc *resource.Controller) Option[T] {
	return func(o *options[T]) {
		o.rc = rc
	}
}

// WithLogger configures structured logging.
func WithLogger[T any](logger *slog.Logger) Option[T] {
	return func(o *options[T]) {
		o.logger = logger
	}
}
