package rangeload

import (
	"errors"
	"fmt"

	"github.com/hupe1980/rangeload/itemcache"
	"github.com/hupe1980/rangeload/loader"
	"go.uber.org/multierr"
)

var (
	// ErrClosed is returned by operations on a closed List.
	ErrClosed = errors.New("list closed")

	// ErrInvalidBatchSize is returned by New for a batch size of 0.
	ErrInvalidBatchSize = errors.New("batch size must be positive")

	// ErrReset is returned by a Request whose fetches were cancelled because
	// the List was reset while they ran.
	ErrReset = errors.New("list reset during request")

	// ErrBatchSizeMismatch is returned by Restore for a snapshot taken with a
	// different batch size.
	ErrBatchSizeMismatch = loader.ErrBatchSizeMismatch

	// ErrInvalidSnapshot is returned by Restore for data that is not a snapshot.
	ErrInvalidSnapshot = errors.New("invalid snapshot")
)

// FetchError reports a failed fetch of the inclusive item range [From, To].
type FetchError = loader.FetchError

// FetchErrors returns the individual fetch failures contained in an error
// returned by Request.
func FetchErrors(err error) []*FetchError {
	var out []*FetchError
	for _, e := range multierr.Errors(err) {
		var fe *FetchError
		if errors.As(e, &fe) {
			out = append(out, fe)
		}
	}
	return out
}

func translateError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, loader.ErrClosed) {
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}
	if errors.Is(err, itemcache.ErrInvalidPageSize) {
		return fmt.Errorf("%w: %w", ErrInvalidBatchSize, err)
	}

	return err
}
