package rangeset

import (
	"math"
	"strings"

	"github.com/google/btree"
)

// degree is the B-tree node degree. Coverage sets of scrolling lists hold few
// runs, so a small degree keeps clones and rebalancing cheap.
const degree = 16

func lessInterval(a, b Interval) bool { return a.From < b.From }

// Set is an immutable set of uint64 indices.
//
// The zero value is an empty set and is ready to use. Every operation that
// changes membership returns a new Set. Queries are safe for concurrent use;
// deriving new Sets (Merge, Union) from the same Set must be serialized by
// the caller because the copy-on-write clone marks the shared tree.
type Set struct {
	tree *btree.BTreeG[Interval]
}

// New returns an empty Set.
func New() Set {
	return Set{}
}

// Of returns the Set covering the union of the given intervals.
// It panics with an *IntervalError if any interval has From > To.
func Of(intervals ...Interval) Set {
	if len(intervals) == 0 {
		return Set{}
	}
	t := btree.NewG(degree, lessInterval)
	for _, iv := range intervals {
		mustValid(iv)
		insert(t, iv)
	}
	return Set{tree: t}
}

func mustValid(iv Interval) {
	if err := iv.Validate(); err != nil {
		panic(err)
	}
}

// clone returns a private copy of the backing tree. btree clones lazily, so
// this is O(1) until one side is written.
func (s Set) clone() *btree.BTreeG[Interval] {
	if s.tree == nil {
		return btree.NewG(degree, lessInterval)
	}
	return s.tree.Clone()
}

// Merge returns a Set whose members are those of s plus every index in iv.
//
// s is left untouched. Merge panics with an *IntervalError when
// iv.From > iv.To: such an interval is a bug in the caller.
func (s Set) Merge(iv Interval) Set {
	mustValid(iv)
	t := s.clone()
	insert(t, iv)
	return Set{tree: t}
}

// insert adds iv to t in place, coalescing every interval it overlaps or
// touches so that t stays disjoint and non-adjacent.
func insert(t *btree.BTreeG[Interval], iv Interval) {
	merged := iv
	var absorbed []Interval

	// An interval starting exactly at iv.From is picked up by the ascend
	// below. Anything before it can only touch iv from the left.
	t.DescendLessOrEqual(Interval{From: iv.From}, func(p Interval) bool {
		if p.From < iv.From && p.touches(iv) {
			absorbed = append(absorbed, p)
		}
		return false
	})

	limit := succ(iv.To)
	t.AscendGreaterOrEqual(Interval{From: iv.From}, func(n Interval) bool {
		if n.From > limit {
			return false
		}
		absorbed = append(absorbed, n)
		return true
	})

	for _, a := range absorbed {
		t.Delete(a)
		merged.From = min(merged.From, a.From)
		merged.To = max(merged.To, a.To)
	}
	t.ReplaceOrInsert(merged)
}

// Union returns a Set containing the members of both s and other.
func (s Set) Union(other Set) Set {
	if other.IsEmpty() {
		return s
	}
	if s.IsEmpty() {
		return other
	}
	t := s.clone()
	other.tree.Ascend(func(iv Interval) bool {
		insert(t, iv)
		return true
	})
	return Set{tree: t}
}

// Difference returns the members of s that are not members of other (s AND NOT other).
func (s Set) Difference(other Set) Set {
	if s.IsEmpty() {
		return Set{}
	}
	if other.IsEmpty() {
		return s
	}
	t := btree.NewG(degree, lessInterval)
	s.tree.Ascend(func(a Interval) bool {
		for _, piece := range subtract(a, other.tree) {
			t.ReplaceOrInsert(piece)
		}
		return true
	})
	return Set{tree: t}
}

// Remove returns s without the indices of iv.
// It panics with an *IntervalError when iv.From > iv.To.
func (s Set) Remove(iv Interval) Set {
	mustValid(iv)
	return s.Difference(Of(iv))
}

// subtract carves the intervals of b out of a and returns the remaining pieces
// in ascending order.
func subtract(a Interval, b *btree.BTreeG[Interval]) []Interval {
	var overlapping []Interval
	b.DescendLessOrEqual(Interval{From: a.From}, func(p Interval) bool {
		if p.From < a.From && p.Overlaps(a) {
			overlapping = append(overlapping, p)
		}
		return false
	})
	b.AscendGreaterOrEqual(Interval{From: a.From}, func(n Interval) bool {
		if n.From > a.To {
			return false
		}
		overlapping = append(overlapping, n)
		return true
	})

	var pieces []Interval
	cur := a.From
	for _, o := range overlapping {
		if o.From > cur {
			pieces = append(pieces, Interval{From: cur, To: o.From - 1})
		}
		if o.To >= a.To {
			return pieces
		}
		cur = max(cur, o.To+1)
	}
	return append(pieces, Interval{From: cur, To: a.To})
}

// Split decomposes s into the minimal ascending sequence of disjoint,
// non-adjacent intervals whose union is exactly s. An empty set yields nil.
func (s Set) Split() []Interval {
	if s.IsEmpty() {
		return nil
	}
	out := make([]Interval, 0, s.tree.Len())
	s.tree.Ascend(func(iv Interval) bool {
		out = append(out, iv)
		return true
	})
	return out
}

// Ascend calls fn for each run in ascending order until fn returns false.
func (s Set) Ascend(fn func(Interval) bool) {
	if s.tree == nil {
		return
	}
	s.tree.Ascend(fn)
}

// Contains reports whether i is a member of s.
func (s Set) Contains(i uint64) bool {
	if s.tree == nil {
		return false
	}
	found := false
	s.tree.DescendLessOrEqual(Interval{From: i}, func(p Interval) bool {
		found = p.Contains(i)
		return false
	})
	return found
}

// ContainsInterval reports whether every index of iv is a member of s.
func (s Set) ContainsInterval(iv Interval) bool {
	if s.tree == nil || iv.Validate() != nil {
		return false
	}
	found := false
	s.tree.DescendLessOrEqual(Interval{From: iv.From}, func(p Interval) bool {
		found = p.From <= iv.From && iv.To <= p.To
		return false
	})
	return found
}

// IsEmpty reports whether s has no members.
func (s Set) IsEmpty() bool {
	return s.tree == nil || s.tree.Len() == 0
}

// Count returns the number of disjoint runs in s.
func (s Set) Count() int {
	if s.tree == nil {
		return 0
	}
	return s.tree.Len()
}

// Cardinality returns the number of members, saturating at math.MaxUint64.
func (s Set) Cardinality() uint64 {
	var n uint64
	s.Ascend(func(iv Interval) bool {
		l := iv.Len()
		if n > math.MaxUint64-l {
			n = math.MaxUint64
			return false
		}
		n += l
		return true
	})
	return n
}

// Min returns the smallest member.
func (s Set) Min() (uint64, bool) {
	if s.IsEmpty() {
		return 0, false
	}
	iv, _ := s.tree.Min()
	return iv.From, true
}

// Max returns the largest member.
func (s Set) Max() (uint64, bool) {
	if s.IsEmpty() {
		return 0, false
	}
	iv, _ := s.tree.Max()
	return iv.To, true
}

// Equal reports whether s and other have the same members.
func (s Set) Equal(other Set) bool {
	if s.Count() != other.Count() {
		return false
	}
	a, b := s.Split(), other.Split()
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (s Set) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	first := true
	s.Ascend(func(iv Interval) bool {
		if !first {
			sb.WriteByte(' ')
		}
		first = false
		sb.WriteString(iv.String())
		return true
	})
	sb.WriteByte('}')
	return sb.String()
}
