package testutil

import (
	"math/rand"
	"sync"
)

// Span is an inclusive index range used by the generators and the reference set.
type Span struct {
	From uint64
	To   uint64
}

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand = rand.New(rand.NewSource(r.seed))
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Uint64n returns a pseudo-random number in [0,n).
func (r *RNG) Uint64n(n uint64) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return uint64(r.rand.Int63n(int64(n)))
}

// Span returns a random span inside [0, universe) no longer than maxLen.
func (r *RNG) Span(universe, maxLen uint64) Span {
	r.mu.Lock()
	defer r.mu.Unlock()
	from := uint64(r.rand.Int63n(int64(universe)))
	length := uint64(r.rand.Int63n(int64(maxLen))) + 1
	to := min(from+length-1, universe-1)
	return Span{From: from, To: to}
}

// Spans returns n random spans, see Span.
func (r *RNG) Spans(n int, universe, maxLen uint64) []Span {
	out := make([]Span, n)
	for i := range out {
		out[i] = r.Span(universe, maxLen)
	}
	return out
}

// ScrollWindows simulates a viewport of the given height scrolling through
// [0, universe) in n steps. Steps move forward mostly, with occasional jumps
// backwards, so consecutive windows overlap.
func (r *RNG) ScrollWindows(n int, universe, height uint64) []Span {
	out := make([]Span, 0, n)
	var top uint64
	for i := 0; i < n; i++ {
		step := r.Uint64n(height)
		if r.Intn(5) == 0 && top > height {
			top -= r.Uint64n(top)
		} else {
			top += step
		}
		if top+height > universe {
			top = universe - height
		}
		out = append(out, Span{From: top, To: top + height - 1})
	}
	return out
}

// BoolSet is a reference set over [0, size) backed by a plain []bool.
type BoolSet struct {
	bits []bool
}

// NewBoolSet returns an empty reference set for indices below size.
func NewBoolSet(size int) *BoolSet {
	return &BoolSet{bits: make([]bool, size)}
}

// Mark sets every index of [from, to].
func (b *BoolSet) Mark(from, to uint64) {
	for i := from; i <= to; i++ {
		b.bits[i] = true
	}
}

// Clear unsets every index of [from, to].
func (b *BoolSet) Clear(from, to uint64) {
	for i := from; i <= to; i++ {
		b.bits[i] = false
	}
}

// Has reports whether i is set.
func (b *BoolSet) Has(i uint64) bool {
	return i < uint64(len(b.bits)) && b.bits[i]
}

// Count returns the number of set indices.
func (b *BoolSet) Count() int {
	n := 0
	for _, v := range b.bits {
		if v {
			n++
		}
	}
	return n
}

// Runs returns the minimal ascending list of maximal runs of set indices.
func (b *BoolSet) Runs() []Span {
	var out []Span
	inRun := false
	var start uint64
	for i, v := range b.bits {
		switch {
		case v && !inRun:
			inRun = true
			start = uint64(i)
		case !v && inRun:
			inRun = false
			out = append(out, Span{From: start, To: uint64(i) - 1})
		}
	}
	if inRun {
		out = append(out, Span{From: start, To: uint64(len(b.bits)) - 1})
	}
	return out
}
