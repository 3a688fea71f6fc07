package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"

	"github.com/hupe1980/rangeload/blobstore"
	"github.com/hupe1980/rangeload/codec"
	"github.com/hupe1980/rangeload/compress"
	"golang.org/x/sync/errgroup"
)

// ErrCorruptPage is returned for page blobs that cannot be decoded.
var ErrCorruptPage = errors.New("source: corrupt page")

// DefaultMaxConcurrentReads bounds the page reads of one fetch.
const DefaultMaxConcurrentReads = 8

type pageOptions struct {
	codec       codec.Codec
	compression compress.Type
	maxReads    int
}

// PageOption configures Pages and WritePages.
type PageOption func(*pageOptions)

// WithCodec sets the codec used by WritePages. Pages reads the codec name
// from each page, so readers do not need this option.
func WithCodec(c codec.Codec) PageOption {
	return func(o *pageOptions) {
		o.codec = c
	}
}

// WithCompression sets the compression used by WritePages.
func WithCompression(t compress.Type) PageOption {
	return func(o *pageOptions) {
		o.compression = t
	}
}

// WithMaxConcurrentReads bounds the concurrent page reads of one fetch.
func WithMaxConcurrentReads(n int) PageOption {
	return func(o *pageOptions) {
		o.maxReads = n
	}
}

func applyPageOptions(optFns []PageOption) pageOptions {
	o := pageOptions{
		codec:       codec.Default,
		compression: compress.None,
		maxReads:    DefaultMaxConcurrentReads,
	}
	for _, fn := range optFns {
		fn(&o)
	}
	if o.maxReads <= 0 {
		o.maxReads = DefaultMaxConcurrentReads
	}
	return o
}

// PageName returns the blob name of page index under prefix.
func PageName(prefix string, index uint64) string {
	return path.Join(prefix, strconv.FormatUint(index, 10))
}

// Pages reads items stored as one blob per page.
//
// A page blob is the codec name, length-prefixed with one byte, followed by a
// compress block holding the encoded []T. Every page but the last holds
// exactly pageSize items; a missing page ends the collection.
type Pages[T any] struct {
	store    blobstore.Store
	prefix   string
	pageSize uint64
	maxReads int
}

// NewPages creates a page source. pageSize must match the size the pages
// were written with.
func NewPages[T any](store blobstore.Store, prefix string, pageSize uint64, optFns ...PageOption) *Pages[T] {
	o := applyPageOptions(optFns)
	return &Pages[T]{
		store:    store,
		prefix:   prefix,
		pageSize: pageSize,
		maxReads: o.maxReads,
	}
}

// Fetch reads the pages overlapping [from, to] concurrently and returns the
// requested items.
func (p *Pages[T]) Fetch(ctx context.Context, from, to uint64) ([]T, error) {
	if p.pageSize == 0 {
		return nil, errors.New("source: page size must be positive")
	}
	if from > to {
		return nil, nil
	}

	first, last := from/p.pageSize, to/p.pageSize
	n := last - first + 1
	if n > 1<<20 {
		return nil, ErrOutOfRange
	}
	pages := make([][]T, n)
	missing := make([]bool, n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.maxReads)
	for i := range pages {
		idx := first + uint64(i)
		g.Go(func() error {
			items, err := p.readPage(gctx, idx)
			if errors.Is(err, blobstore.ErrNotFound) {
				missing[i] = true
				return nil
			}
			if err != nil {
				return err
			}
			pages[i] = items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []T
	for i, items := range pages {
		if missing[i] {
			break
		}
		base := (first + uint64(i)) * p.pageSize
		lo := uint64(0)
		if from > base {
			lo = from - base
		}
		hi := uint64(len(items))
		if to-base < hi {
			hi = to - base + 1
		}
		if lo < hi {
			out = append(out, items[lo:hi]...)
		}
		if uint64(len(items)) < p.pageSize {
			break
		}
	}
	return out, nil
}

func (p *Pages[T]) readPage(ctx context.Context, idx uint64) ([]T, error) {
	name := PageName(p.prefix, idx)
	b, err := p.store.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer b.Close()

	data := make([]byte, b.Size())
	n, err := b.ReadAt(ctx, data, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("source: read page %s: %w", name, err)
	}
	items, err := decodePage[T](data[:n])
	if err != nil {
		return nil, fmt.Errorf("source: page %s: %w", name, err)
	}
	return items, nil
}

func decodePage[T any](data []byte) ([]T, error) {
	if len(data) < 1 || len(data) < 1+int(data[0]) {
		return nil, ErrCorruptPage
	}
	name := string(data[1 : 1+int(data[0])])
	c, ok := codec.ByName(name)
	if !ok {
		return nil, fmt.Errorf("%w: unknown codec %q", ErrCorruptPage, name)
	}

	payload, err := compress.Decompress(data[1+int(data[0]):])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptPage, err)
	}
	var items []T
	if err := c.Unmarshal(payload, &items); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptPage, err)
	}
	return items, nil
}

func encodePage[T any](items []T, o pageOptions) ([]byte, error) {
	payload, err := o.codec.Marshal(items)
	if err != nil {
		return nil, err
	}
	block, err := compress.Compress(payload, o.compression)
	if err != nil {
		return nil, err
	}

	name := o.codec.Name()
	if len(name) > 255 {
		return nil, fmt.Errorf("source: codec name %q too long", name)
	}
	out := make([]byte, 0, 1+len(name)+len(block))
	out = append(out, byte(len(name)))
	out = append(out, name...)
	return append(out, block...), nil
}

// WritePages splits items into pages of pageSize and stores them under
// prefix. Pages are written concurrently.
func WritePages[T any](ctx context.Context, w blobstore.Writer, prefix string, pageSize uint64, items []T, optFns ...PageOption) error {
	if pageSize == 0 {
		return errors.New("source: page size must be positive")
	}
	o := applyPageOptions(optFns)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.maxReads)
	for idx := uint64(0); idx*pageSize < uint64(len(items)); idx++ {
		lo := idx * pageSize
		hi := min(lo+pageSize, uint64(len(items)))
		g.Go(func() error {
			data, err := encodePage(items[lo:hi], o)
			if err != nil {
				return fmt.Errorf("source: encode page %d: %w", idx, err)
			}
			return w.Put(gctx, PageName(prefix, idx), data)
		})
	}
	return g.Wait()
}
