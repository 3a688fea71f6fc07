// Package rangeset provides an immutable set of non-negative integer indices.
//
// A Set is stored as a sorted collection of disjoint, non-adjacent inclusive
// intervals kept in a copy-on-write B-tree. Merging a range into a set never
// mutates the receiver; it returns a new Set that shares structure with the
// old one.
//
//	s := rangeset.New()
//	s = s.Merge(rangeset.Interval{From: 0, To: 9})
//	s = s.Merge(rangeset.Interval{From: 10, To: 19}) // coalesces into [0,19]
//	s = s.Merge(rangeset.Interval{From: 40, To: 49})
//
//	for _, iv := range s.Split() {
//	    fmt.Println(iv) // [0,19] then [40,49]
//	}
//
// The bit-vector view (bit i set iff i is a member) is available through
// Bits and FromBits for interchange with systems that encode coverage as a
// big integer.
package rangeset
