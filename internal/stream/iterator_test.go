package stream

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jfperron/bulkstream/internal/source"
)

type fetchCall struct {
	offset int64
	limit  int
}

// fakeSource serves a synthetic table of totalRows rows and records every
// fetch it receives.
type fakeSource struct {
	totalRows int64
	fetchErr  error
	calls     []fetchCall
}

func (f *fakeSource) Fetch(_ context.Context, offset int64, limit int) ([]source.Row, error) {
	f.calls = append(f.calls, fetchCall{offset: offset, limit: limit})
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}

	var rows []source.Row
	for i := offset; i < f.totalRows && len(rows) < limit; i++ {
		row, err := source.NewRow([]string{"id", "name"}, []interface{}{i + 1, fmt.Sprintf("row-%d", i+1)})
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (f *fakeSource) Count(context.Context) (int64, error) {
	return f.totalRows, nil
}

func drain(t *testing.T, it Iterator) []*Chunk {
	t.Helper()
	var chunks []*Chunk
	for {
		chunk, err := it.Next(context.Background())
		if err != nil {
			t.Fatalf("Next error: %v", err)
		}
		if chunk == nil {
			return chunks
		}
		chunks = append(chunks, chunk)
	}
}

func TestSequentialIteratorChunkSizes(t *testing.T) {
	tests := []struct {
		name      string
		totalRows int64
		chunkSize int
		wantSizes []int
	}{
		{name: "divides with remainder", totalRows: 250, chunkSize: 100, wantSizes: []int{100, 100, 50}},
		{name: "divides evenly", totalRows: 200, chunkSize: 100, wantSizes: []int{100, 100}},
		{name: "single short chunk", totalRows: 7, chunkSize: 100, wantSizes: []int{7}},
		{name: "empty table", totalRows: 0, chunkSize: 100, wantSizes: nil},
		{name: "chunk size one", totalRows: 3, chunkSize: 1, wantSizes: []int{1, 1, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &fakeSource{totalRows: tt.totalRows}
			it, err := NewSequentialIterator(src, tt.chunkSize)
			if err != nil {
				t.Fatalf("NewSequentialIterator error: %v", err)
			}

			chunks := drain(t, it)
			if len(chunks) != len(tt.wantSizes) {
				t.Fatalf("got %d chunks, want %d", len(chunks), len(tt.wantSizes))
			}
			for i, chunk := range chunks {
				if chunk.Size() != tt.wantSizes[i] {
					t.Errorf("chunk %d size = %d, want %d", i, chunk.Size(), tt.wantSizes[i])
				}
				if chunk.Index != i+1 {
					t.Errorf("chunk %d has index %d, want %d", i, chunk.Index, i+1)
				}
			}
		})
	}
}

func TestSequentialIteratorOffsets(t *testing.T) {
	src := &fakeSource{totalRows: 250}
	it, err := NewSequentialIterator(src, 100)
	if err != nil {
		t.Fatalf("NewSequentialIterator error: %v", err)
	}
	drain(t, it)

	// The final fetch comes back short, so no extra probe is issued.
	want := []fetchCall{{0, 100}, {100, 100}, {200, 100}}
	if len(src.calls) != len(want) {
		t.Fatalf("got %d fetches, want %d: %v", len(src.calls), len(want), src.calls)
	}
	for i, call := range src.calls {
		if call != want[i] {
			t.Errorf("fetch %d = %+v, want %+v", i, call, want[i])
		}
	}
}

func TestSequentialIteratorStaysExhausted(t *testing.T) {
	src := &fakeSource{totalRows: 5}
	it, err := NewSequentialIterator(src, 10)
	if err != nil {
		t.Fatalf("NewSequentialIterator error: %v", err)
	}
	drain(t, it)

	fetches := len(src.calls)
	chunk, err := it.Next(context.Background())
	if chunk != nil || err != nil {
		t.Errorf("Next after exhaustion = %v, %v; want nil, nil", chunk, err)
	}
	if len(src.calls) != fetches {
		t.Error("exhausted iterator touched the row source again")
	}
}

func TestSequentialIteratorPropagatesSourceError(t *testing.T) {
	src := &fakeSource{fetchErr: source.ErrUnavailable}
	it, err := NewSequentialIterator(src, 10)
	if err != nil {
		t.Fatalf("NewSequentialIterator error: %v", err)
	}

	if _, err := it.Next(context.Background()); !errors.Is(err, source.ErrUnavailable) {
		t.Fatalf("Next = %v, want ErrUnavailable", err)
	}

	// A failed iterator is done; it must not retry.
	chunk, err := it.Next(context.Background())
	if chunk != nil || err != nil {
		t.Errorf("Next after failure = %v, %v; want nil, nil", chunk, err)
	}
}

func TestNewSequentialIteratorRejectsBadChunkSize(t *testing.T) {
	src := &fakeSource{totalRows: 10}
	for _, size := range []int{0, -1} {
		if _, err := NewSequentialIterator(src, size); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("chunk size %d: got %v, want ErrInvalidArgument", size, err)
		}
	}
	if len(src.calls) != 0 {
		t.Error("constructor touched the row source")
	}
}

func TestPaginatedIterator(t *testing.T) {
	tests := []struct {
		name       string
		totalRows  int64
		page       int
		chunkSize  int
		wantRows   int
		wantOffset int64
	}{
		{name: "first page", totalRows: 250, page: 1, chunkSize: 100, wantRows: 100, wantOffset: 0},
		{name: "middle page", totalRows: 250, page: 2, chunkSize: 100, wantRows: 100, wantOffset: 100},
		{name: "short final page", totalRows: 250, page: 3, chunkSize: 100, wantRows: 50, wantOffset: 200},
		{name: "page past the end", totalRows: 250, page: 4, chunkSize: 100, wantRows: 0, wantOffset: 300},
		{name: "small page size", totalRows: 10, page: 4, chunkSize: 3, wantRows: 1, wantOffset: 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &fakeSource{totalRows: tt.totalRows}
			it, err := NewPaginatedIterator(src, tt.page, tt.chunkSize)
			if err != nil {
				t.Fatalf("NewPaginatedIterator error: %v", err)
			}

			chunk, err := it.Next(context.Background())
			if err != nil {
				t.Fatalf("Next error: %v", err)
			}
			if chunk == nil {
				t.Fatal("first Next returned nil chunk")
			}
			if chunk.Index != 1 {
				t.Errorf("chunk index = %d, want 1", chunk.Index)
			}
			if chunk.Size() != tt.wantRows {
				t.Errorf("chunk size = %d, want %d", chunk.Size(), tt.wantRows)
			}
			if len(src.calls) != 1 {
				t.Fatalf("got %d fetches, want 1", len(src.calls))
			}
			if src.calls[0].offset != tt.wantOffset || src.calls[0].limit != tt.chunkSize {
				t.Errorf("fetch = %+v, want offset %d limit %d",
					src.calls[0], tt.wantOffset, tt.chunkSize)
			}

			// Exactly one chunk per request.
			next, err := it.Next(context.Background())
			if next != nil || err != nil {
				t.Errorf("second Next = %v, %v; want nil, nil", next, err)
			}
		})
	}
}

func TestNewPaginatedIteratorRejectsBadArguments(t *testing.T) {
	src := &fakeSource{totalRows: 10}

	tests := []struct {
		name      string
		page      int
		chunkSize int
	}{
		{name: "zero page", page: 0, chunkSize: 10},
		{name: "negative page", page: -2, chunkSize: 10},
		{name: "zero chunk size", page: 1, chunkSize: 0},
		{name: "negative chunk size", page: 1, chunkSize: -5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewPaginatedIterator(src, tt.page, tt.chunkSize); !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("got %v, want ErrInvalidArgument", err)
			}
		})
	}
	if len(src.calls) != 0 {
		t.Error("constructor touched the row source")
	}
}
