package rangeset

import (
	"math"
	"testing"

	"github.com/hupe1980/rangeload/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func iv(from, to uint64) Interval { return Interval{From: from, To: to} }

func TestMergeCoalesces(t *testing.T) {
	tests := []struct {
		name  string
		input []Interval
		want  []Interval
	}{
		{"single", []Interval{iv(3, 7)}, []Interval{iv(3, 7)}},
		{"single bit", []Interval{iv(5, 5)}, []Interval{iv(5, 5)}},
		{"disjoint", []Interval{iv(10, 12), iv(0, 2)}, []Interval{iv(0, 2), iv(10, 12)}},
		{"adjacent left", []Interval{iv(5, 9), iv(0, 4)}, []Interval{iv(0, 9)}},
		{"adjacent right", []Interval{iv(0, 4), iv(5, 9)}, []Interval{iv(0, 9)}},
		{"overlap", []Interval{iv(0, 6), iv(4, 9)}, []Interval{iv(0, 9)}},
		{"contained", []Interval{iv(0, 20), iv(4, 9)}, []Interval{iv(0, 20)}},
		{"bridges many", []Interval{iv(0, 1), iv(4, 5), iv(8, 9), iv(12, 13), iv(2, 11)}, []Interval{iv(0, 13)}},
		{"same start", []Interval{iv(4, 5), iv(4, 9)}, []Interval{iv(4, 9)}},
		{"gap of one stays split", []Interval{iv(0, 4), iv(6, 9)}, []Interval{iv(0, 4), iv(6, 9)}},
		{"top of range", []Interval{iv(math.MaxUint64-1, math.MaxUint64), iv(math.MaxUint64-5, math.MaxUint64-2)}, []Interval{iv(math.MaxUint64-5, math.MaxUint64)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New()
			for _, in := range tt.input {
				s = s.Merge(in)
			}
			assert.Equal(t, tt.want, s.Split())
		})
	}
}

func TestMergeDoesNotMutateReceiver(t *testing.T) {
	base := Of(iv(0, 9))
	merged := base.Merge(iv(20, 29))

	assert.Equal(t, []Interval{iv(0, 9)}, base.Split())
	assert.Equal(t, []Interval{iv(0, 9), iv(20, 29)}, merged.Split())

	// Writing to the derived set must leave the original tree untouched.
	merged = merged.Merge(iv(10, 19))
	assert.Equal(t, []Interval{iv(0, 29)}, merged.Split())
	assert.Equal(t, []Interval{iv(0, 9)}, base.Split())
}

func TestMergePanicsOnInvertedInterval(t *testing.T) {
	defer func() {
		r := recover()
		require.NotNil(t, r)
		err, ok := r.(error)
		require.True(t, ok)
		assert.ErrorIs(t, err, ErrInvalidInterval)
		var ie *IntervalError
		require.ErrorAs(t, err, &ie)
		assert.Equal(t, uint64(9), ie.From)
	}()
	New().Merge(iv(9, 3))
}

func TestNewInterval(t *testing.T) {
	got, err := NewInterval(2, 4)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), got.Len())

	_, err = NewInterval(4, 2)
	assert.ErrorIs(t, err, ErrInvalidInterval)
}

func TestMergeIdempotent(t *testing.T) {
	rng := testutil.NewRNG(1)
	for i := 0; i < 200; i++ {
		s := randomSet(rng, 8)
		sp := rng.Span(300, 40)
		in := iv(sp.From, sp.To)

		once := s.Merge(in)
		twice := once.Merge(in)
		assert.True(t, once.Equal(twice), "merge(merge(s,i),i) != merge(s,i) for %v %v", s, in)
	}
}

func TestMergeCommutative(t *testing.T) {
	rng := testutil.NewRNG(2)
	for i := 0; i < 200; i++ {
		s := randomSet(rng, 6)
		a, b := rng.Span(300, 40), rng.Span(300, 40)

		ab := s.Merge(iv(a.From, a.To)).Merge(iv(b.From, b.To))
		ba := s.Merge(iv(b.From, b.To)).Merge(iv(a.From, a.To))
		assert.True(t, ab.Equal(ba), "%v vs %v", ab, ba)
	}
}

func TestSplitMatchesReference(t *testing.T) {
	const universe = 256
	rng := testutil.NewRNG(3)

	for round := 0; round < 100; round++ {
		ref := testutil.NewBoolSet(universe)
		s := New()
		for _, sp := range rng.Spans(rng.Intn(12)+1, universe, 24) {
			ref.Mark(sp.From, sp.To)
			s = s.Merge(iv(sp.From, sp.To))
		}

		want := ref.Runs()
		got := s.Split()
		require.Len(t, got, len(want))
		for i := range want {
			assert.Equal(t, want[i].From, got[i].From)
			assert.Equal(t, want[i].To, got[i].To)
		}
		assert.Equal(t, uint64(ref.Count()), s.Cardinality())

		for i := uint64(0); i < universe; i++ {
			assert.Equal(t, ref.Has(i), s.Contains(i), "index %d", i)
		}
	}
}

func TestSplitNonAdjacent(t *testing.T) {
	rng := testutil.NewRNG(4)
	for round := 0; round < 100; round++ {
		runs := randomSet(rng, 15).Split()
		for i := 1; i < len(runs); i++ {
			assert.Greater(t, runs[i].From, runs[i-1].To+1, "runs %v and %v could be merged", runs[i-1], runs[i])
		}
	}
}

func TestSplitEmpty(t *testing.T) {
	assert.Empty(t, New().Split())
	assert.Empty(t, Set{}.Split())
	assert.True(t, Set{}.IsEmpty())
	assert.Equal(t, "{}", Set{}.String())
}

func TestDifference(t *testing.T) {
	tests := []struct {
		name string
		a, b Set
		want []Interval
	}{
		{"disjoint", Of(iv(0, 9)), Of(iv(20, 29)), []Interval{iv(0, 9)}},
		{"covered", Of(iv(5, 9)), Of(iv(0, 20)), nil},
		{"hole", Of(iv(0, 20)), Of(iv(5, 9)), []Interval{iv(0, 4), iv(10, 20)}},
		{"left trim", Of(iv(5, 20)), Of(iv(0, 9)), []Interval{iv(10, 20)}},
		{"right trim", Of(iv(0, 9)), Of(iv(5, 20)), []Interval{iv(0, 4)}},
		{"many holes", Of(iv(0, 30)), Of(iv(2, 3), iv(10, 12), iv(29, 40)), []Interval{iv(0, 1), iv(4, 9), iv(13, 28)}},
		{"empty other", Of(iv(1, 2)), New(), []Interval{iv(1, 2)}},
		{"empty self", New(), Of(iv(1, 2)), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Difference(tt.b).Split())
		})
	}
}

func TestDifferenceMatchesReference(t *testing.T) {
	const universe = 200
	rng := testutil.NewRNG(5)

	for round := 0; round < 100; round++ {
		refA, refB := testutil.NewBoolSet(universe), testutil.NewBoolSet(universe)
		a, b := New(), New()
		for _, sp := range rng.Spans(6, universe, 30) {
			refA.Mark(sp.From, sp.To)
			a = a.Merge(iv(sp.From, sp.To))
		}
		for _, sp := range rng.Spans(6, universe, 30) {
			refB.Mark(sp.From, sp.To)
			b = b.Merge(iv(sp.From, sp.To))
		}

		diff := a.Difference(b)
		for i := uint64(0); i < universe; i++ {
			assert.Equal(t, refA.Has(i) && !refB.Has(i), diff.Contains(i), "index %d", i)
		}
		assert.True(t, diff.Union(a.Difference(diff)).Equal(a))
	}
}

func TestRemove(t *testing.T) {
	s := Of(iv(0, 49))
	s2 := s.Remove(iv(10, 19))

	assert.Equal(t, []Interval{iv(0, 9), iv(20, 49)}, s2.Split())
	assert.Equal(t, []Interval{iv(0, 49)}, s.Split())
}

func TestUnion(t *testing.T) {
	a := Of(iv(0, 4), iv(20, 24))
	b := Of(iv(5, 9), iv(30, 34))

	assert.Equal(t, []Interval{iv(0, 9), iv(20, 24), iv(30, 34)}, a.Union(b).Split())
	assert.Equal(t, a.Split(), a.Union(New()).Split())
	assert.Equal(t, b.Split(), New().Union(b).Split())
}

func TestContainsInterval(t *testing.T) {
	s := Of(iv(10, 19), iv(30, 39))

	assert.True(t, s.ContainsInterval(iv(10, 19)))
	assert.True(t, s.ContainsInterval(iv(12, 15)))
	assert.False(t, s.ContainsInterval(iv(15, 30)))
	assert.False(t, s.ContainsInterval(iv(0, 5)))
	assert.False(t, s.ContainsInterval(iv(5, 1)))
}

func TestMinMaxCardinality(t *testing.T) {
	s := Of(iv(10, 19), iv(30, 39))

	lo, ok := s.Min()
	require.True(t, ok)
	assert.Equal(t, uint64(10), lo)

	hi, ok := s.Max()
	require.True(t, ok)
	assert.Equal(t, uint64(39), hi)

	assert.Equal(t, uint64(20), s.Cardinality())
	assert.Equal(t, 2, s.Count())

	_, ok = New().Min()
	assert.False(t, ok)

	full := Of(iv(0, math.MaxUint64))
	assert.Equal(t, uint64(math.MaxUint64), full.Cardinality())
}

func TestString(t *testing.T) {
	assert.Equal(t, "{[0,4] [9,9]}", Of(iv(0, 4), iv(9, 9)).String())
}

func randomSet(rng *testutil.RNG, n int) Set {
	s := New()
	for _, sp := range rng.Spans(rng.Intn(n)+1, 300, 30) {
		s = s.Merge(iv(sp.From, sp.To))
	}
	return s
}
