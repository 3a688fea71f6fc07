package source

import (
	"context"
	"errors"
)

// ErrOutOfRange is returned for index ranges a source cannot address.
var ErrOutOfRange = errors.New("source: index out of range")

// Source fetches items by index.
type Source[T any] interface {
	// Fetch returns the items of [from, to] starting at from. It returns
	// fewer items when the collection ends inside the range.
	Fetch(ctx context.Context, from, to uint64) ([]T, error)
}

// Func adapts a plain function to Source.
type Func[T any] func(ctx context.Context, from, to uint64) ([]T, error)

// Fetch calls f.
func (f Func[T]) Fetch(ctx context.Context, from, to uint64) ([]T, error) {
	return f(ctx, from, to)
}

// Slice serves items from memory. It is mostly useful in tests and examples.
func Slice[T any](items []T) Source[T] {
	return Func[T](func(ctx context.Context, from, to uint64) ([]T, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n := uint64(len(items))
		if from >= n || from > to {
			return nil, nil
		}
		end := min(to, n-1) + 1
		out := make([]T, end-from)
		copy(out, items[from:end])
		return out, nil
	})
}
