package rangeload

import (
	"log/slog"

	"github.com/hupe1980/rangeload/codec"
	"github.com/hupe1980/rangeload/internal/resource"
)

// DefaultBatchSize is the number of items fetched per batch when no batch
// size is configured.
const DefaultBatchSize = 50

// ResourceConfig holds the limits of a ResourceController.
type ResourceConfig = resource.Config

// ResourceController bounds fetch concurrency, fetch rate and item memory.
// One controller may be shared by many lists to enforce a global budget.
type ResourceController = resource.Controller

// NewResourceController creates a controller enforcing cfg.
func NewResourceController(cfg ResourceConfig) *ResourceController {
	return resource.NewController(cfg)
}

type options struct {
	name             string
	batchSize        uint64
	maxItems         uint64
	itemBytes        int64
	reopenOnEvict    bool
	maxConcurrent    int
	controller       *resource.Controller
	codec            codec.Codec
	metricsCollector MetricsCollector
	logger           *Logger
}

// Option configures a List.
type Option func(*options)

// WithName sets the subscription name attached to log records.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithBatchSize sets the number of items per fetch. It also becomes the page
// size of the item cache. Defaults to DefaultBatchSize.
func WithBatchSize(n uint64) Option {
	return func(o *options) {
		o.batchSize = n
	}
}

// WithMaxItems bounds the number of cached items. Least recently used pages
// are evicted beyond it. 0 means unbounded.
func WithMaxItems(n uint64) Option {
	return func(o *options) {
		o.maxItems = n
	}
}

// WithItemBytes charges n bytes per cached item against the memory limit of
// the resource controller.
func WithItemBytes(n int64) Option {
	return func(o *options) {
		o.itemBytes = n
	}
}

// WithReopenOnEvict makes evicted pages fetchable again: the batches of an
// evicted page are dropped from the coverage, so the next request overlapping
// them fetches them anew.
//
// Without it, scrolling back to an evicted region shows holes until Reset.
func WithReopenOnEvict(enabled bool) Option {
	return func(o *options) {
		o.reopenOnEvict = enabled
	}
}

// WithMaxConcurrentFetches bounds how many runs of one request are fetched at
// the same time.
func WithMaxConcurrentFetches(n int) Option {
	return func(o *options) {
		o.maxConcurrent = n
	}
}

// WithResourceConfig gives the List its own resource controller.
func WithResourceConfig(cfg ResourceConfig) Option {
	return func(o *options) {
		o.controller = resource.NewController(cfg)
	}
}

// WithResourceController shares rc with other lists.
//
// Example:
//
//	rc := rangeload.NewResourceController(rangeload.ResourceConfig{
//	    MaxInFlightFetches: 4,
//	    FetchesPerSecond:   20,
//	})
//	a, _ := rangeload.New(srcA, rangeload.WithResourceController(rc))
//	b, _ := rangeload.New(srcB, rangeload.WithResourceController(rc))
func WithResourceController(rc *ResourceController) Option {
	return func(o *options) {
		o.controller = rc
	}
}

// WithCodec configures the codec used by Snapshot and Restore.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &rangeload.BasicMetricsCollector{}
//	l, _ := rangeload.New(src, rangeload.WithMetricsCollector(metrics))
//	// ... use l ...
//	stats := metrics.GetStats()
//	fmt.Printf("Fetches: %d, Avg latency: %dns\n", stats.FetchCount, stats.FetchAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := rangeload.NewJSONLogger(slog.LevelInfo)
//	l, _ := rangeload.New(src, rangeload.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		batchSize:        DefaultBatchSize,
		codec:            codec.Default,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	return o
}
