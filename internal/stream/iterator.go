package stream

import (
	"context"
	"errors"
	"fmt"

	"github.com/jfperron/bulkstream/internal/source"
)

// ErrInvalidArgument indicates a non-positive page or chunk size. It is
// always raised before the row source is touched.
var ErrInvalidArgument = errors.New("invalid argument")

// Iterator is a lazy, finite, forward-only sequence of chunks. Next returns
// (nil, nil) once the sequence is exhausted; iterators are not restartable.
type Iterator interface {
	Next(ctx context.Context) (*Chunk, error)
}

// SequentialIterator walks the whole table from offset 0, advancing by the
// chunk size until a fetch comes back short or empty.
type SequentialIterator struct {
	src       source.RowSource
	chunkSize int
	offset    int64
	index     int
	done      bool
}

func NewSequentialIterator(src source.RowSource, chunkSize int) (*SequentialIterator, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidArgument, chunkSize)
	}
	return &SequentialIterator{
		src:       src,
		chunkSize: chunkSize,
	}, nil
}

func (it *SequentialIterator) Next(ctx context.Context) (*Chunk, error) {
	if it.done {
		return nil, nil
	}

	rows, err := it.src.Fetch(ctx, it.offset, it.chunkSize)
	if err != nil {
		it.done = true
		return nil, err
	}
	if len(rows) == 0 {
		it.done = true
		return nil, nil
	}
	if len(rows) < it.chunkSize {
		// short fetch means end of table; this is the final chunk
		it.done = true
	}

	it.index++
	it.offset += int64(len(rows))

	return &Chunk{Index: it.index, Rows: rows}, nil
}

// PaginatedIterator produces exactly one chunk for a (page, chunk size)
// pair. The chunk may be empty when the page is past the end of the table.
type PaginatedIterator struct {
	src       source.RowSource
	page      int
	chunkSize int
	done      bool
}

func NewPaginatedIterator(src source.RowSource, page, chunkSize int) (*PaginatedIterator, error) {
	if page <= 0 {
		return nil, fmt.Errorf("%w: page must be positive, got %d", ErrInvalidArgument, page)
	}
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidArgument, chunkSize)
	}
	return &PaginatedIterator{
		src:       src,
		page:      page,
		chunkSize: chunkSize,
	}, nil
}

func (it *PaginatedIterator) Next(ctx context.Context) (*Chunk, error) {
	if it.done {
		return nil, nil
	}
	it.done = true

	offset := int64(it.page-1) * int64(it.chunkSize)
	rows, err := it.src.Fetch(ctx, offset, it.chunkSize)
	if err != nil {
		return nil, err
	}

	return &Chunk{Index: 1, Rows: rows}, nil
}
