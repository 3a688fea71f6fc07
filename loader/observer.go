package loader

import "time"

// Observer receives loader events. Implementations must be safe for
// concurrent use; OnFetch is called from dispatch goroutines.
type Observer interface {
	// OnPlan is called after a request has been planned.
	// runs is the number of fetches dispatched, trimmed the number of runs
	// dropped because the caller already held their items.
	OnPlan(runs, trimmed int)

	// OnFetch is called when a fetch of [from, to] returns.
	OnFetch(from, to uint64, duration time.Duration, err error)

	// OnReset is called after the coverage history was discarded.
	OnReset(generation uint64)
}

// NoopObserver is a no-op implementation of Observer.
type NoopObserver struct{}

func (NoopObserver) OnPlan(int, int)                              {}
func (NoopObserver) OnFetch(uint64, uint64, time.Duration, error) {}
func (NoopObserver) OnReset(uint64)                               {}
