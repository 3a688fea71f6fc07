package rangeset

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrCorrupt is returned when a binary-encoded Set cannot be decoded.
var ErrCorrupt = errors.New("corrupt range set encoding")

const encodingVersion = 1

// MarshalBinary encodes s as a version byte, a uvarint run count, and for each
// run the uvarint gap from the end of the previous run followed by the uvarint
// run length minus one.
func (s Set) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 0, 1+binary.MaxVarintLen64*(1+2*s.Count()))
	buf = append(buf, encodingVersion)
	buf = binary.AppendUvarint(buf, uint64(s.Count()))

	var next uint64
	s.Ascend(func(iv Interval) bool {
		buf = binary.AppendUvarint(buf, iv.From-next)
		buf = binary.AppendUvarint(buf, iv.To-iv.From)
		next = succ(iv.To)
		return true
	})
	return buf, nil
}

// UnmarshalBinary replaces s with the Set encoded in data.
func (s *Set) UnmarshalBinary(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: empty input", ErrCorrupt)
	}
	if data[0] != encodingVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrCorrupt, data[0])
	}
	data = data[1:]

	count, n := binary.Uvarint(data)
	if n <= 0 {
		return fmt.Errorf("%w: bad run count", ErrCorrupt)
	}
	data = data[n:]

	runs := make([]Interval, 0, min(count, 1024))
	var next uint64
	for i := uint64(0); i < count; i++ {
		gap, n := binary.Uvarint(data)
		if n <= 0 {
			return fmt.Errorf("%w: bad gap at run %d", ErrCorrupt, i)
		}
		data = data[n:]
		span, n := binary.Uvarint(data)
		if n <= 0 {
			return fmt.Errorf("%w: bad length at run %d", ErrCorrupt, i)
		}
		data = data[n:]

		// Runs after the first must leave at least one clear index.
		if i > 0 && gap == 0 {
			return fmt.Errorf("%w: adjacent runs at %d", ErrCorrupt, i)
		}
		from := next + gap
		to := from + span
		if from < next || to < from {
			return fmt.Errorf("%w: run %d overflows", ErrCorrupt, i)
		}
		runs = append(runs, Interval{From: from, To: to})
		next = succ(to)
	}
	if len(data) != 0 {
		return fmt.Errorf("%w: %d trailing bytes", ErrCorrupt, len(data))
	}

	*s = Of(runs...)
	return nil
}
