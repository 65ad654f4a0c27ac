// Package source provides access to the table being streamed. The row shape
// is discovered at query time; see Row.
package source

import (
	"context"
	"errors"
)

// ErrUnavailable indicates the backing store could not be reached or a query
// against it failed. It is terminal for the stream that hit it.
var ErrUnavailable = errors.New("storage unavailable")

// RowSource reads bounded windows of rows from one table.
type RowSource interface {
	// Fetch returns up to limit rows starting at offset. It returns fewer
	// than limit rows only at the end of the table, and an empty slice when
	// offset is past the end.
	Fetch(ctx context.Context, offset int64, limit int) ([]Row, error)

	// Count returns the total row count at call time. Best effort: not
	// transactionally consistent with concurrent fetches.
	Count(ctx context.Context) (int64, error)
}
