package loader

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/hupe1980/rangeload/internal/resource"
	"github.com/hupe1980/rangeload/rangeset"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// FetchFunc retrieves the inclusive item range [from, to]. Ranges are aligned
// to batch boundaries; the last batch of a collection may extend past its end.
type FetchFunc func(ctx context.Context, from, to uint64) error

// LoadedFunc reports whether the caller already holds the item at index.
type LoadedFunc func(index uint64) bool

// Loader tracks which batches of a list have been requested and dispatches
// fetches for the ones that have not.
//
// Coverage is kept in batch units, not item indices. All methods are safe for
// concurrent use, but one Loader must serve exactly one list subscription.
type Loader struct {
	mu         sync.Mutex
	coverage   rangeset.Set
	generation uint64
	batchSize  uint64
	closed     bool

	fetch         FetchFunc
	isLoaded      LoadedFunc
	rc            *resource.Controller
	logger        *slog.Logger
	observer      Observer
	maxConcurrent int

	inflight sync.WaitGroup
}

// New creates a Loader that retrieves batches through fetch.
func New(fetch FetchFunc, optFns ...Option) *Loader {
	o := applyOptions(optFns)
	return &Loader{
		fetch:         fetch,
		batchSize:     o.batchSize,
		isLoaded:      o.isLoaded,
		rc:            o.rc,
		logger:        o.logger,
		observer:      o.observer,
		maxConcurrent: o.maxConcurrent,
	}
}

// Plan records the window [start, stop] as requested and returns the item
// ranges that still have to be fetched, in ascending order. Nothing is
// dispatched; the caller becomes responsible for fetching the returned runs.
//
// Without force, leading batches of a run for which the item-loaded predicate
// reports the first item as present are dropped.
func (l *Loader) Plan(start, stop uint64, force bool) []rangeset.Interval {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	runs, _ := l.planLocked(start, stop, force)
	return runs
}

func (l *Loader) planLocked(start, stop uint64, force bool) ([]rangeset.Interval, int) {
	b := l.batchSize
	if b == 0 || start > stop {
		return nil, 0
	}

	window := rangeset.Interval{From: start / b, To: stop / b}
	requested := l.coverage.Merge(window)
	delta := requested.Difference(l.coverage)
	l.coverage = requested

	var (
		runs    []rangeset.Interval
		trimmed int
	)
	for _, unit := range delta.Split() {
		run := l.toItems(unit)
		if !force && l.isLoaded != nil {
			var ok bool
			if run, ok = l.trim(run); !ok {
				trimmed++
				continue
			}
		}
		runs = append(runs, run)
	}
	return runs, trimmed
}

// trim advances run.From by one batch while run.From < run.To and the caller
// already holds the item at run.From. It reports false when the run was
// advanced onto or past run.To. A run with From == To is never trimmed.
func (l *Loader) trim(run rangeset.Interval) (rangeset.Interval, bool) {
	b := l.batchSize
	from := run.From
	for run.From < run.To && l.isLoaded(run.From) {
		if run.From > math.MaxUint64-b {
			run.From = run.To
			break
		}
		run.From += b
	}
	if run.From >= run.To && from < run.To {
		return run, false
	}
	return run, true
}

// toItems converts a run of batch units into the inclusive item range it covers.
func (l *Loader) toItems(unit rangeset.Interval) rangeset.Interval {
	b := l.batchSize
	from := unit.From * b
	hi := unit.To * b
	to := uint64(math.MaxUint64)
	if hi <= math.MaxUint64-(b-1) {
		to = hi + b - 1
	}
	return rangeset.Interval{From: from, To: to}
}

// Start plans the window [start, stop] and dispatches one fetch per run. It
// returns as soon as the fetches are handed off; use the returned Pending to
// wait for them.
//
// Runs are released to the fetch function in ascending order. At most
// WithMaxConcurrentFetches of them run at once, and each additionally holds a
// slot of the configured resource controller.
func (l *Loader) Start(ctx context.Context, start, stop uint64, force bool) *Pending {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return settled(nil, ErrClosed)
	}
	runs, trimmed := l.planLocked(start, stop, force)
	gen := l.generation
	if len(runs) > 0 {
		l.inflight.Add(1)
	}
	l.mu.Unlock()

	l.observer.OnPlan(len(runs), trimmed)
	l.logger.DebugContext(ctx, "request planned",
		"start", start,
		"stop", stop,
		"force", force,
		"runs", len(runs),
		"trimmed", trimmed,
		"generation", gen,
	)

	if len(runs) == 0 {
		return settled(nil, nil)
	}

	p := &Pending{
		runs:       runs,
		generation: gen,
		done:       make(chan struct{}),
	}
	go l.dispatch(ctx, p)
	return p
}

// Request is Start followed by Wait.
func (l *Loader) Request(ctx context.Context, start, stop uint64, force bool) error {
	return l.Start(ctx, start, stop, force).Wait()
}

func (l *Loader) dispatch(ctx context.Context, p *Pending) {
	defer l.inflight.Done()
	defer close(p.done)

	var (
		mu   sync.Mutex
		errs error
	)

	g := new(errgroup.Group)
	g.SetLimit(l.maxConcurrent)

	// Each run waits for its predecessor to obtain a fetch slot, so slots and
	// rate tokens are granted in ascending order.
	prev := make(chan struct{})
	close(prev)
	for _, run := range p.runs {
		wait, ready := prev, make(chan struct{})
		prev = ready
		g.Go(func() error {
			<-wait
			if err := l.fetchRun(ctx, run, ready); err != nil {
				mu.Lock()
				errs = multierr.Append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	p.err = errs
}

func (l *Loader) fetchRun(ctx context.Context, run rangeset.Interval, ready chan struct{}) error {
	err := l.rc.AcquireFetch(ctx)
	close(ready)
	if err != nil {
		l.observer.OnFetch(run.From, run.To, 0, err)
		return &FetchError{From: run.From, To: run.To, Err: err}
	}
	defer l.rc.ReleaseFetch()

	begin := time.Now()
	err = l.fetch(ctx, run.From, run.To)
	elapsed := time.Since(begin)
	l.observer.OnFetch(run.From, run.To, elapsed, err)

	if err != nil {
		l.logger.WarnContext(ctx, "fetch failed",
			"from", run.From,
			"to", run.To,
			"duration", elapsed,
			"error", err,
		)
		return &FetchError{From: run.From, To: run.To, Err: err}
	}
	l.logger.DebugContext(ctx, "fetch completed",
		"from", run.From,
		"to", run.To,
		"duration", elapsed,
	)
	return nil
}

// Reset discards the coverage history. Fetches already dispatched keep
// running; their results belong to the previous generation.
func (l *Loader) Reset() {
	l.mu.Lock()
	l.coverage = rangeset.New()
	l.generation++
	gen := l.generation
	l.mu.Unlock()

	l.observer.OnReset(gen)
	l.logger.Debug("coverage reset", "generation", gen)
}

// Invalidate forgets that the batches overlapping the item range [from, to]
// were requested, so the next overlapping request fetches them again.
func (l *Loader) Invalidate(from, to uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.batchSize
	if b == 0 || from > to {
		return
	}
	l.coverage = l.coverage.Remove(rangeset.Interval{From: from / b, To: to / b})
}

// SetBatchSize changes the batch size. Coverage is kept in batch units, so a
// change discards the history like Reset.
func (l *Loader) SetBatchSize(n uint64) {
	l.mu.Lock()
	if n == l.batchSize {
		l.mu.Unlock()
		return
	}
	l.batchSize = n
	l.coverage = rangeset.New()
	l.generation++
	gen := l.generation
	l.mu.Unlock()

	l.observer.OnReset(gen)
	l.logger.Debug("coverage reset", "generation", gen, "batch_size", n)
}

// BatchSize returns the configured batch size.
func (l *Loader) BatchSize() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.batchSize
}

// Generation returns the number of resets so far. Fetch callbacks can capture
// it to recognize results that arrive after a Reset.
func (l *Loader) Generation() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.generation
}

// Coverage returns the requested item ranges in ascending order.
func (l *Loader) Coverage() []rangeset.Interval {
	l.mu.Lock()
	defer l.mu.Unlock()

	runs := l.coverage.Split()
	for i, unit := range runs {
		runs[i] = l.toItems(unit)
	}
	return runs
}

// Snapshot is the persisted coverage of a Loader.
type Snapshot struct {
	BatchSize uint64
	Batches   rangeset.Set
}

// Snapshot returns the current coverage in batch units.
func (l *Loader) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Snapshot{BatchSize: l.batchSize, Batches: l.coverage}
}

// Restore replaces the coverage with a previously taken snapshot.
func (l *Loader) Restore(s Snapshot) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if s.BatchSize != l.batchSize {
		return fmt.Errorf("%w: snapshot %d, loader %d", ErrBatchSizeMismatch, s.BatchSize, l.batchSize)
	}
	l.coverage = s.Batches
	return nil
}

// Close rejects further requests and waits for dispatched fetches to return.
func (l *Loader) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()

	l.inflight.Wait()
	return nil
}

// Pending is the outcome of a Start call.
type Pending struct {
	runs       []rangeset.Interval
	generation uint64
	done       chan struct{}
	err        error
}

func settled(runs []rangeset.Interval, err error) *Pending {
	done := make(chan struct{})
	close(done)
	return &Pending{runs: runs, done: done, err: err}
}

// Runs returns the item ranges dispatched by the request.
func (p *Pending) Runs() []rangeset.Interval {
	return p.runs
}

// Generation returns the loader generation the request was planned in.
func (p *Pending) Generation() uint64 {
	return p.generation
}

// Done is closed once every dispatched fetch has returned.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until every dispatched fetch has returned. The error combines
// all failed fetches (see multierr.Errors); each is a *FetchError.
func (p *Pending) Wait() error {
	<-p.done
	return p.err
}
