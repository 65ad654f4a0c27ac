package source

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Row is a single table row: column name to scalar value, in result-set
// order. The column set is not known until query time, so Row keeps the
// ordering explicitly instead of relying on a Go map.
type Row struct {
	columns []string
	values  []interface{}
}

// NewRow builds a Row from parallel column and value slices.
func NewRow(columns []string, values []interface{}) (Row, error) {
	if len(columns) != len(values) {
		return Row{}, fmt.Errorf("column/value count mismatch: %d columns, %d values", len(columns), len(values))
	}
	return Row{columns: columns, values: values}, nil
}

// Columns returns the column names in result-set order.
func (r Row) Columns() []string {
	return r.columns
}

// Value returns the value for a column and whether the column exists.
func (r Row) Value(column string) (interface{}, bool) {
	for i, c := range r.columns {
		if c == column {
			return r.values[i], true
		}
	}
	return nil, false
}

// Len returns the number of columns.
func (r Row) Len() int {
	return len(r.columns)
}

// MarshalJSON encodes the row as a JSON object with keys in column order.
// Null column values encode as JSON null; absent columns are absent.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, col := range r.columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(col)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(r.values[i])
		if err != nil {
			return nil, fmt.Errorf("failed to encode column %s: %w", col, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object into the row, preserving the key order
// of the document.
func (r *Row) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("expected JSON object for row, got %v", tok)
	}

	r.columns = r.columns[:0]
	r.values = r.values[:0]
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("expected object key, got %v", keyTok)
		}
		var value interface{}
		if err := dec.Decode(&value); err != nil {
			return err
		}
		r.columns = append(r.columns, key)
		r.values = append(r.values, value)
	}

	// consume closing brace
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}
