package rangeset

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidInterval is returned when an interval has From > To.
	ErrInvalidInterval = errors.New("invalid interval")

	// ErrInvalidArgument is returned when a bit-vector cannot be decoded into a Set.
	ErrInvalidArgument = errors.New("invalid argument")
)

// IntervalError reports a malformed interval.
//
// It wraps ErrInvalidInterval and is also the panic value of Set.Merge.
type IntervalError struct {
	From uint64
	To   uint64
}

func (e *IntervalError) Error() string {
	return fmt.Sprintf("invalid interval [%d,%d]: from > to", e.From, e.To)
}

func (e *IntervalError) Unwrap() error { return ErrInvalidInterval }

// Interval is an inclusive run of indices [From, To].
type Interval struct {
	From uint64
	To   uint64
}

// NewInterval returns [from, to] or an *IntervalError when from > to.
func NewInterval(from, to uint64) (Interval, error) {
	iv := Interval{From: from, To: to}
	if err := iv.Validate(); err != nil {
		return Interval{}, err
	}
	return iv, nil
}

// Validate returns an *IntervalError when From > To.
func (iv Interval) Validate() error {
	if iv.From > iv.To {
		return &IntervalError{From: iv.From, To: iv.To}
	}
	return nil
}

// Len returns the number of indices in the interval, saturating at math.MaxUint64.
func (iv Interval) Len() uint64 {
	if iv.From == 0 && iv.To == math.MaxUint64 {
		return math.MaxUint64
	}
	return iv.To - iv.From + 1
}

// Contains reports whether i lies within the interval.
func (iv Interval) Contains(i uint64) bool {
	return iv.From <= i && i <= iv.To
}

// Overlaps reports whether the two intervals share at least one index.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.From <= other.To && other.From <= iv.To
}

// touches reports whether the intervals overlap or are directly adjacent,
// i.e. whether their union is a single contiguous run.
func (iv Interval) touches(other Interval) bool {
	return iv.From <= succ(other.To) && other.From <= succ(iv.To)
}

func (iv Interval) String() string {
	return fmt.Sprintf("[%d,%d]", iv.From, iv.To)
}

// succ returns x+1, saturating at math.MaxUint64.
func succ(x uint64) uint64 {
	if x == math.MaxUint64 {
		return x
	}
	return x + 1
}
