package rangeload

import (
	"sync/atomic"
	"time"

	"github.com/hupe1980/rangeload/loader"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems; package
// promcollector provides a Prometheus implementation.
type MetricsCollector interface {
	// RecordRequest is called after each Request with the number of fetch
	// runs it dispatched.
	RecordRequest(runs int, duration time.Duration, err error)

	// RecordPlan is called for every planned window. trimmed counts runs
	// skipped because their items were already cached.
	RecordPlan(runs, trimmed int)

	// RecordFetch is called after each source fetch.
	RecordFetch(items int, duration time.Duration, err error)

	// RecordDiscard is called when fetched items arrive after a reset.
	RecordDiscard(items int)

	// RecordReset is called after each reset.
	RecordReset()
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordRequest(int, time.Duration, error) {}
func (NoopMetricsCollector) RecordPlan(int, int)                     {}
func (NoopMetricsCollector) RecordFetch(int, time.Duration, error)   {}
func (NoopMetricsCollector) RecordDiscard(int)                       {}
func (NoopMetricsCollector) RecordReset()                            {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	RequestCount      atomic.Int64
	RequestErrors     atomic.Int64
	RequestTotalNanos atomic.Int64
	RunsDispatched    atomic.Int64
	RunsTrimmed       atomic.Int64
	FetchCount        atomic.Int64
	FetchErrors       atomic.Int64
	FetchTotalNanos   atomic.Int64
	ItemsFetched      atomic.Int64
	ItemsDiscarded    atomic.Int64
	ResetCount        atomic.Int64
}

// RecordRequest implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRequest(runs int, duration time.Duration, err error) {
	b.RequestCount.Add(1)
	b.RequestTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.RequestErrors.Add(1)
	}
}

// RecordPlan implements MetricsCollector.
func (b *BasicMetricsCollector) RecordPlan(runs, trimmed int) {
	b.RunsDispatched.Add(int64(runs))
	b.RunsTrimmed.Add(int64(trimmed))
}

// RecordFetch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFetch(items int, duration time.Duration, err error) {
	b.FetchCount.Add(1)
	b.FetchTotalNanos.Add(duration.Nanoseconds())
	b.ItemsFetched.Add(int64(items))
	if err != nil {
		b.FetchErrors.Add(1)
	}
}

// RecordDiscard implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDiscard(items int) {
	b.ItemsDiscarded.Add(int64(items))
}

// RecordReset implements MetricsCollector.
func (b *BasicMetricsCollector) RecordReset() {
	b.ResetCount.Add(1)
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		RequestCount:    b.RequestCount.Load(),
		RequestErrors:   b.RequestErrors.Load(),
		RequestAvgNanos: avg(b.RequestTotalNanos.Load(), b.RequestCount.Load()),
		RunsDispatched:  b.RunsDispatched.Load(),
		RunsTrimmed:     b.RunsTrimmed.Load(),
		FetchCount:      b.FetchCount.Load(),
		FetchErrors:     b.FetchErrors.Load(),
		FetchAvgNanos:   avg(b.FetchTotalNanos.Load(), b.FetchCount.Load()),
		ItemsFetched:    b.ItemsFetched.Load(),
		ItemsDiscarded:  b.ItemsDiscarded.Load(),
		ResetCount:      b.ResetCount.Load(),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	RequestCount    int64
	RequestErrors   int64
	RequestAvgNanos int64
	RunsDispatched  int64
	RunsTrimmed     int64
	FetchCount      int64
	FetchErrors     int64
	FetchAvgNanos   int64
	ItemsFetched    int64
	ItemsDiscarded  int64
	ResetCount      int64
}

// planObserver forwards loader plan events to a MetricsCollector. Fetch and
// reset events are recorded by the List itself, which knows item counts.
type planObserver struct {
	loader.NoopObserver
	mc MetricsCollector
}

func (o planObserver) OnPlan(runs, trimmed int) {
	o.mc.RecordPlan(runs, trimmed)
}
