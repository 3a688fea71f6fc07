package rangeset

import (
	"fmt"
	"math/big"
)

// MaxBitsIndex bounds the members Bits will encode. A bit-vector needs
// Max()+1 bits of memory, so sets reaching past this index are rejected.
const MaxBitsIndex = 1<<32 - 1

// Bits encodes s as a bit-vector: bit i of the result is set iff i is a member.
//
// Each run [from, to] contributes the mask 2^(to+1) - 2^from.
func (s Set) Bits() (*big.Int, error) {
	out := new(big.Int)
	if hi, ok := s.Max(); ok && hi > MaxBitsIndex {
		return nil, fmt.Errorf("%w: member %d exceeds bit-vector limit %d", ErrInvalidArgument, hi, uint64(MaxBitsIndex))
	}
	one := big.NewInt(1)
	mask := new(big.Int)
	low := new(big.Int)
	s.Ascend(func(iv Interval) bool {
		mask.Lsh(one, uint(iv.To)+1)
		low.Lsh(one, uint(iv.From))
		mask.Sub(mask, low)
		out.Or(out, mask)
		return true
	})
	return out, nil
}

// FromBits decodes a bit-vector into a Set by scanning from bit 0 upward,
// opening a run on each clear-to-set transition and closing it on each
// set-to-clear transition. A nil or zero value yields an empty Set.
func FromBits(x *big.Int) (Set, error) {
	if x == nil || x.Sign() == 0 {
		return Set{}, nil
	}
	if x.Sign() < 0 {
		return Set{}, fmt.Errorf("%w: negative bit-vector", ErrInvalidArgument)
	}

	var runs []Interval
	inRun := false
	var start uint64
	n := x.BitLen()
	for i := 0; i < n; i++ {
		set := x.Bit(i) == 1
		switch {
		case set && !inRun:
			inRun = true
			start = uint64(i)
		case !set && inRun:
			inRun = false
			runs = append(runs, Interval{From: start, To: uint64(i) - 1})
		}
	}
	// The highest bit of a positive value is always set.
	if inRun {
		runs = append(runs, Interval{From: start, To: uint64(n) - 1})
	}
	return Of(runs...), nil
}
