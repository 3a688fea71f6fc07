package loader

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hupe1980/rangeload/internal/resource"
	"github.com/hupe1980/rangeload/rangeset"
	"github.com/hupe1980/rangeload/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

type call struct{ from, to uint64 }

// recorder is a FetchFunc test double that records every call.
type recorder struct {
	mu    sync.Mutex
	calls []call
	fail  func(from, to uint64) error
	gate  chan struct{} // if non-nil, fetches block until it is closed

	active    atomic.Int32
	maxActive atomic.Int32
}

func (r *recorder) fetch(ctx context.Context, from, to uint64) error {
	r.mu.Lock()
	r.calls = append(r.calls, call{from, to})
	r.mu.Unlock()

	n := r.active.Add(1)
	defer r.active.Add(-1)
	for {
		m := r.maxActive.Load()
		if n <= m || r.maxActive.CompareAndSwap(m, n) {
			break
		}
	}

	if r.gate != nil {
		select {
		case <-r.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if r.fail != nil {
		return r.fail(from, to)
	}
	return nil
}

func (r *recorder) take() []call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.calls
	r.calls = nil
	sort.SliceStable(out, func(i, j int) bool { return out[i].from < out[j].from })
	return out
}

func TestRequestEndToEnd(t *testing.T) {
	rec := &recorder{}
	l := New(rec.fetch, WithBatchSize(10))

	require.NoError(t, l.Request(t.Context(), 0, 24, false))
	assert.Equal(t, []call{{0, 29}}, rec.take())

	require.NoError(t, l.Request(t.Context(), 20, 44, false))
	assert.Equal(t, []call{{30, 49}}, rec.take())

	assert.Equal(t, []rangeset.Interval{{From: 0, To: 49}}, l.Coverage())
}

func TestRequestNoDuplicateDispatch(t *testing.T) {
	rec := &recorder{}
	l := New(rec.fetch, WithBatchSize(5))

	for _, w := range []call{{0, 9}, {5, 14}, {0, 19}} {
		require.NoError(t, l.Request(t.Context(), w.from, w.to, false))
	}

	seen := map[uint64]int{}
	for _, c := range rec.take() {
		for unit := c.from / 5; unit <= c.to/5; unit++ {
			seen[unit]++
		}
	}
	assert.Equal(t, map[uint64]int{0: 1, 1: 1, 2: 1, 3: 1}, seen)
}

func TestRequestRandomWindowsFetchEachBatchOnce(t *testing.T) {
	const (
		batch    = 7
		universe = 2000
	)
	rng := testutil.NewRNG(99)
	rec := &recorder{}
	l := New(rec.fetch, WithBatchSize(batch))

	want := testutil.NewBoolSet(universe/batch + 1)
	for _, w := range rng.ScrollWindows(300, universe, 40) {
		require.NoError(t, l.Request(t.Context(), w.From, w.To, false))
		want.Mark(w.From/batch, w.To/batch)
	}

	got := testutil.NewBoolSet(universe/batch + 1)
	for _, c := range rec.take() {
		assert.Zero(t, c.from%batch, "unaligned from %d", c.from)
		assert.Equal(t, uint64(batch-1), c.to%batch, "unaligned to %d", c.to)
		for unit := c.from / batch; unit <= c.to/batch; unit++ {
			require.False(t, got.Has(unit), "batch %d fetched twice", unit)
			got.Mark(unit, unit)
		}
	}
	assert.Equal(t, want.Runs(), got.Runs())
}

func TestRequestSplitsIntoRuns(t *testing.T) {
	rec := &recorder{}
	l := New(rec.fetch, WithBatchSize(10))

	require.NoError(t, l.Request(t.Context(), 0, 9, false))
	require.NoError(t, l.Request(t.Context(), 30, 39, false))
	rec.take()

	p := l.Start(t.Context(), 0, 59, false)
	require.NoError(t, p.Wait())
	assert.Equal(t, []rangeset.Interval{{From: 10, To: 29}, {From: 40, To: 59}}, p.Runs())
	assert.Equal(t, []call{{10, 29}, {40, 59}}, rec.take())
}

func TestResetClearsHistory(t *testing.T) {
	rec := &recorder{}
	l := New(rec.fetch, WithBatchSize(10))

	require.NoError(t, l.Request(t.Context(), 0, 19, false))
	require.NoError(t, l.Request(t.Context(), 0, 19, false))
	assert.Equal(t, []call{{0, 19}}, rec.take())

	l.Reset()
	assert.Equal(t, uint64(1), l.Generation())
	assert.Empty(t, l.Coverage())

	require.NoError(t, l.Request(t.Context(), 0, 19, false))
	assert.Equal(t, []call{{0, 19}}, rec.take())
}

func TestTrimmingRespectsItemLoaded(t *testing.T) {
	loaded := func(i uint64) bool { return i < 20 }

	t.Run("prefix trimmed", func(t *testing.T) {
		rec := &recorder{}
		l := New(rec.fetch, WithBatchSize(10), WithItemLoaded(loaded))

		require.NoError(t, l.Request(t.Context(), 0, 39, false))
		assert.Equal(t, []call{{20, 39}}, rec.take())
	})

	t.Run("fully loaded run skipped", func(t *testing.T) {
		rec := &recorder{}
		l := New(rec.fetch, WithBatchSize(10), WithItemLoaded(loaded))

		p := l.Start(t.Context(), 0, 19, false)
		require.NoError(t, p.Wait())
		assert.Empty(t, p.Runs())
		assert.Empty(t, rec.take())
		// The skipped batches still count as requested.
		assert.Equal(t, []rangeset.Interval{{From: 0, To: 19}}, l.Coverage())
	})

	t.Run("force bypasses trimming", func(t *testing.T) {
		rec := &recorder{}
		l := New(rec.fetch, WithBatchSize(10), WithItemLoaded(loaded))

		require.NoError(t, l.Request(t.Context(), 0, 39, true))
		assert.Equal(t, []call{{0, 39}}, rec.take())
	})

	t.Run("only leading batches are trimmed", func(t *testing.T) {
		rec := &recorder{}
		holes := func(i uint64) bool { return i < 10 || (i >= 20 && i < 30) }
		l := New(rec.fetch, WithBatchSize(10), WithItemLoaded(holes))

		require.NoError(t, l.Request(t.Context(), 0, 39, false))
		assert.Equal(t, []call{{10, 39}}, rec.take())
	})

	t.Run("batch size one", func(t *testing.T) {
		rec := &recorder{}
		some := func(i uint64) bool { return i == 5 || i == 6 || i == 12 }
		l := New(rec.fetch, WithBatchSize(1), WithItemLoaded(some))

		// advancing onto the last item skips the run
		require.NoError(t, l.Request(t.Context(), 5, 7, false))
		assert.Empty(t, rec.take())

		// a single item run is fetched even when loaded
		require.NoError(t, l.Request(t.Context(), 12, 12, false))
		assert.Equal(t, []call{{12, 12}}, rec.take())

		require.NoError(t, l.Request(t.Context(), 20, 21, false))
		assert.Equal(t, []call{{20, 21}}, rec.take())
	})
}

func TestFailedFetchIsNotRetried(t *testing.T) {
	boom := errors.New("boom")
	rec := &recorder{fail: func(from, to uint64) error { return boom }}
	l := New(rec.fetch, WithBatchSize(10))

	err := l.Request(t.Context(), 0, 9, false)
	require.ErrorIs(t, err, boom)
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, uint64(0), fe.From)
	assert.Equal(t, uint64(9), fe.To)
	rec.take()

	// The failed batch stays recorded as requested.
	rec.fail = nil
	require.NoError(t, l.Request(t.Context(), 0, 19, false))
	assert.Equal(t, []call{{10, 19}}, rec.take())

	// Forcing alone does not help either; only a reset reopens it.
	require.NoError(t, l.Request(t.Context(), 0, 9, true))
	assert.Empty(t, rec.take())

	l.Reset()
	require.NoError(t, l.Request(t.Context(), 0, 9, true))
	assert.Equal(t, []call{{0, 9}}, rec.take())
}

func TestFetchErrorsAreAggregated(t *testing.T) {
	rec := &recorder{}
	l := New(rec.fetch, WithBatchSize(10))
	require.NoError(t, l.Request(t.Context(), 20, 29, false))
	require.NoError(t, l.Request(t.Context(), 40, 49, false))
	rec.take()

	rec.fail = func(from, to uint64) error {
		if from == 50 {
			return nil
		}
		return errors.New("unavailable")
	}

	// runs [0,19], [30,39], [50,69]: two fail, one succeeds
	err := l.Request(t.Context(), 0, 69, false)
	require.Error(t, err)
	errs := multierr.Errors(err)
	require.Len(t, errs, 2)
	for _, e := range errs {
		var fe *FetchError
		require.ErrorAs(t, e, &fe)
		assert.NotEqual(t, uint64(50), fe.From)
	}
	assert.Equal(t, []call{{0, 19}, {30, 39}, {50, 69}}, rec.take())
}

func TestInFlightRequestIsNotDuplicated(t *testing.T) {
	rec := &recorder{gate: make(chan struct{})}
	l := New(rec.fetch, WithBatchSize(10))

	first := l.Start(t.Context(), 0, 9, false)
	require.Len(t, first.Runs(), 1)

	// A second request for the same window while the first is still running
	// must not dispatch again.
	second := l.Start(t.Context(), 0, 9, false)
	assert.Empty(t, second.Runs())
	require.NoError(t, second.Wait())

	close(rec.gate)
	require.NoError(t, first.Wait())
	assert.Equal(t, []call{{0, 9}}, rec.take())
}

func TestResetDoesNotCancelInFlight(t *testing.T) {
	rec := &recorder{gate: make(chan struct{})}
	l := New(rec.fetch, WithBatchSize(10))

	p := l.Start(t.Context(), 0, 9, false)
	assert.Equal(t, uint64(0), p.Generation())
	l.Reset()

	select {
	case <-p.Done():
		t.Fatal("reset must not settle in-flight fetches")
	case <-time.After(10 * time.Millisecond):
	}

	close(rec.gate)
	require.NoError(t, p.Wait())

	// The window is fetchable again in the new generation.
	p2 := l.Start(t.Context(), 0, 9, false)
	require.NoError(t, p2.Wait())
	assert.Equal(t, uint64(1), p2.Generation())
	assert.Equal(t, []call{{0, 9}, {0, 9}}, rec.take())
}

func TestConfigurationNoOps(t *testing.T) {
	rec := &recorder{}

	unconfigured := New(rec.fetch)
	require.NoError(t, unconfigured.Request(t.Context(), 0, 100, false))
	assert.Empty(t, unconfigured.Plan(0, 100, false))

	l := New(rec.fetch, WithBatchSize(10))
	require.NoError(t, l.Request(t.Context(), 50, 10, false))
	assert.Empty(t, rec.take())
	assert.Empty(t, l.Coverage())
}

func TestPlanCommitsWithoutDispatch(t *testing.T) {
	rec := &recorder{}
	l := New(rec.fetch, WithBatchSize(10))

	runs := l.Plan(5, 25, false)
	assert.Equal(t, []rangeset.Interval{{From: 0, To: 29}}, runs)
	assert.Empty(t, l.Plan(0, 29, false))
	assert.Empty(t, rec.take())
}

func TestInvalidate(t *testing.T) {
	rec := &recorder{}
	l := New(rec.fetch, WithBatchSize(10))

	require.NoError(t, l.Request(t.Context(), 0, 49, false))
	rec.take()

	l.Invalidate(15, 25)
	assert.Equal(t, []rangeset.Interval{{From: 0, To: 9}, {From: 30, To: 49}}, l.Coverage())

	require.NoError(t, l.Request(t.Context(), 0, 49, false))
	assert.Equal(t, []call{{10, 29}}, rec.take())

	// no-ops
	l.Invalidate(9, 1)
	New(rec.fetch).Invalidate(0, 10)
}

func TestSetBatchSizeResets(t *testing.T) {
	rec := &recorder{}
	l := New(rec.fetch)

	l.SetBatchSize(10)
	assert.Equal(t, uint64(10), l.BatchSize())
	require.NoError(t, l.Request(t.Context(), 0, 9, false))

	l.SetBatchSize(10)
	assert.NotEmpty(t, l.Coverage())

	l.SetBatchSize(20)
	assert.Empty(t, l.Coverage())
	require.NoError(t, l.Request(t.Context(), 0, 9, false))
	assert.Equal(t, []call{{0, 9}, {0, 19}}, rec.take())
}

func TestSetBatchSizeIsAtomic(t *testing.T) {
	for range 200 {
		rec := &recorder{}
		l := New(rec.fetch, WithBatchSize(10))
		require.NotEmpty(t, l.Plan(0, 9, false))

		var (
			wg   sync.WaitGroup
			runs []rangeset.Interval
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			l.SetBatchSize(20)
		}()
		go func() {
			defer wg.Done()
			runs = l.Plan(0, 19, false)
		}()
		wg.Wait()

		// either [10,19] at the old size or [0,19] at the new one
		require.Len(t, runs, 1)
		assert.Equal(t, uint64(19), runs[0].To)
		assert.Equal(t, uint64(1), l.Generation())
	}
}

func TestSnapshotRestore(t *testing.T) {
	rec := &recorder{}
	l := New(rec.fetch, WithBatchSize(10))
	require.NoError(t, l.Request(t.Context(), 0, 29, false))
	snap := l.Snapshot()

	other := New(rec.fetch, WithBatchSize(10))
	require.NoError(t, other.Restore(snap))
	rec.take()

	require.NoError(t, other.Request(t.Context(), 0, 39, false))
	assert.Equal(t, []call{{30, 39}}, rec.take())

	mismatched := New(rec.fetch, WithBatchSize(25))
	assert.ErrorIs(t, mismatched.Restore(snap), ErrBatchSizeMismatch)
}

func TestCloseWaitsForInFlight(t *testing.T) {
	rec := &recorder{gate: make(chan struct{})}
	l := New(rec.fetch, WithBatchSize(10))

	p := l.Start(t.Context(), 0, 9, false)

	closed := make(chan struct{})
	go func() {
		_ = l.Close()
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatal("close returned with a fetch in flight")
	case <-time.After(10 * time.Millisecond):
	}

	close(rec.gate)
	<-closed
	require.NoError(t, p.Wait())

	assert.ErrorIs(t, l.Request(t.Context(), 100, 109, false), ErrClosed)
	assert.Empty(t, l.Plan(100, 109, false))
	assert.NoError(t, l.Close())
}

func TestMaxConcurrentFetches(t *testing.T) {
	rec := &recorder{}
	l := New(rec.fetch, WithBatchSize(1), WithMaxConcurrentFetches(1))

	// Build coverage with holes so the next request yields many runs.
	for i := uint64(0); i < 40; i += 2 {
		require.NoError(t, l.Request(t.Context(), i, i, false))
	}
	rec.take()

	require.NoError(t, l.Request(t.Context(), 0, 39, false))
	calls := rec.take()
	assert.Len(t, calls, 20)
	assert.Equal(t, int32(1), rec.maxActive.Load())
}

func TestRunsStartInAscendingOrder(t *testing.T) {
	var (
		mu    sync.Mutex
		order []uint64
	)
	fetch := func(ctx context.Context, from, to uint64) error {
		mu.Lock()
		order = append(order, from)
		mu.Unlock()
		return nil
	}
	l := New(fetch, WithBatchSize(1), WithMaxConcurrentFetches(1))
	for i := uint64(0); i < 20; i += 2 {
		l.Plan(i, i, false)
	}

	require.NoError(t, l.Request(t.Context(), 0, 19, false))
	assert.True(t, sort.SliceIsSorted(order, func(i, j int) bool { return order[i] < order[j] }))
	assert.Len(t, order, 10)
}

func TestControllerBoundsFetches(t *testing.T) {
	rc := resource.NewController(resource.Config{MaxInFlightFetches: 2})
	rec := &recorder{}
	l := New(rec.fetch, WithBatchSize(1), WithController(rc))

	for i := uint64(0); i < 30; i += 2 {
		l.Plan(i, i, false)
	}
	require.NoError(t, l.Request(t.Context(), 0, 29, false))

	assert.LessOrEqual(t, rec.maxActive.Load(), int32(2))
	assert.Equal(t, int64(0), rc.InFlight())
}

func TestControllerAcquireFailureIsReported(t *testing.T) {
	rc := resource.NewController(resource.Config{MaxInFlightFetches: 1})
	require.True(t, rc.TryAcquireFetch())
	defer rc.ReleaseFetch()

	rec := &recorder{}
	l := New(rec.fetch, WithBatchSize(10), WithController(rc))

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()
	err := l.Request(ctx, 0, 9, false)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, rec.take())
}

func TestTopOfIndexRange(t *testing.T) {
	rec := &recorder{}
	l := New(rec.fetch, WithBatchSize(10))

	require.NoError(t, l.Request(t.Context(), math.MaxUint64-3, math.MaxUint64, false))
	calls := rec.take()
	require.Len(t, calls, 1)
	assert.Equal(t, uint64(math.MaxUint64/10*10), calls[0].from)
	assert.Equal(t, uint64(math.MaxUint64), calls[0].to)
}

type countingObserver struct {
	plans, fetches, resets, failures atomic.Int32
}

func (o *countingObserver) OnPlan(runs, trimmed int) { o.plans.Add(1) }
func (o *countingObserver) OnFetch(from, to uint64, d time.Duration, err error) {
	o.fetches.Add(1)
	if err != nil {
		o.failures.Add(1)
	}
}
func (o *countingObserver) OnReset(uint64) { o.resets.Add(1) }

func TestObserver(t *testing.T) {
	obs := &countingObserver{}
	rec := &recorder{fail: func(from, to uint64) error {
		if from == 10 {
			return errors.New("nope")
		}
		return nil
	}}
	l := New(rec.fetch, WithBatchSize(10), WithObserver(obs))

	require.NoError(t, l.Request(t.Context(), 0, 9, false))
	require.Error(t, l.Request(t.Context(), 10, 19, false))
	require.NoError(t, l.Request(t.Context(), 0, 19, false))
	l.Reset()

	assert.Equal(t, int32(3), obs.plans.Load())
	assert.Equal(t, int32(2), obs.fetches.Load())
	assert.Equal(t, int32(1), obs.failures.Load())
	assert.Equal(t, int32(1), obs.resets.Load())
}
