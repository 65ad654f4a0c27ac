// Package stream produces bounded row batches from a RowSource and drives
// them to an HTTP response and the chunk persister.
package stream

import (
	"github.com/jfperron/bulkstream/internal/source"
)

// Chunk is one bounded batch of rows. Index is 1-based and strictly
// increasing within a stream; the last chunk of a sequential stream may be
// shorter than the requested size.
type Chunk struct {
	Index int
	Rows  []source.Row
}

// Size returns the number of rows in the chunk.
func (c *Chunk) Size() int {
	return len(c.Rows)
}
