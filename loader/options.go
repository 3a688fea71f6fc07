package loader

import (
	"log/slog"

	"github.com/hupe1980/rangeload/internal/resource"
)

// DefaultMaxConcurrentFetches bounds the fetches one request runs at once.
const DefaultMaxConcurrentFetches = 16

type options struct {
	batchSize     uint64
	isLoaded      LoadedFunc
	logger        *slog.Logger
	observer      Observer
	rc            *resource.Controller
	maxConcurrent int
}

// Option configures a Loader.
type Option func(*options)

// WithBatchSize sets the number of items per fetch batch.
//
// A batch size of 0 leaves the Loader unconfigured: every request is a no-op
// until SetBatchSize is called.
func WithBatchSize(n uint64) Option {
	return func(o *options) {
		o.batchSize = n
	}
}

// WithItemLoaded sets the predicate over the caller's own item cache used to
// drop leading batches that are already present.
//
// The predicate is called with the Loader's lock held and must not call back
// into the Loader.
func WithItemLoaded(fn LoadedFunc) Option {
	return func(o *options) {
		o.isLoaded = fn
	}
}

// WithLogger configures structured logging. Pass nil to disable logging.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithObserver configures an event observer, e.g. for metrics.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		o.observer = obs
	}
}

// WithController makes every fetch acquire a slot from rc before it runs.
// A Controller may be shared between loaders to enforce a global budget.
func WithController(rc *resource.Controller) Option {
	return func(o *options) {
		o.rc = rc
	}
}

// WithMaxConcurrentFetches bounds how many runs of a single request are
// fetched at the same time. Values <= 0 select DefaultMaxConcurrentFetches.
func WithMaxConcurrentFetches(n int) Option {
	return func(o *options) {
		o.maxConcurrent = n
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		maxConcurrent: DefaultMaxConcurrentFetches,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	if o.observer == nil {
		o.observer = NoopObserver{}
	}
	if o.maxConcurrent <= 0 {
		o.maxConcurrent = DefaultMaxConcurrentFetches
	}
	return o
}
