package loader

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned by requests issued after Close.
	ErrClosed = errors.New("loader closed")

	// ErrBatchSizeMismatch is returned when restoring a snapshot taken with a
	// different batch size.
	ErrBatchSizeMismatch = errors.New("batch size mismatch")
)

// FetchError reports a failed fetch of the inclusive item range [From, To].
//
// The original underlying error can be accessed via errors.Unwrap.
type FetchError struct {
	From uint64
	To   uint64
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch [%d,%d]: %v", e.From, e.To, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
