// Package frame provides the minimal tabular value passed between pipeline tasks.
package frame

import (
	"github.com/rotisserie/eris"
)

// Frame is an ordered set of named columns and rows of cells. A nil cell is a null.
// Frames are JSON-encodable so they can travel as activity payloads.
type Frame struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// New returns an empty frame with the given columns.
func New(columns ...string) *Frame {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Frame{Columns: cols, Rows: [][]any{}}
}

// NumRows returns the number of rows.
func (f *Frame) NumRows() int {
	if f == nil {
		return 0
	}
	return len(f.Rows)
}

// Index returns the position of the named column, or -1.
func (f *Frame) Index(column string) int {
	for i, c := range f.Columns {
		if c == column {
			return i
		}
	}
	return -1
}

// Append adds a row. The row must have one cell per column.
func (f *Frame) Append(row []any) error {
	if len(row) != len(f.Columns) {
		return eris.Errorf("frame: row has %d cells, want %d", len(row), len(f.Columns))
	}
	f.Rows = append(f.Rows, row)
	return nil
}

// Column returns every cell of the named column in row order.
func (f *Frame) Column(column string) ([]any, error) {
	idx := f.Index(column)
	if idx < 0 {
		return nil, eris.Errorf("frame: no column %q", column)
	}
	out := make([]any, len(f.Rows))
	for i, row := range f.Rows {
		out[i] = row[idx]
	}
	return out, nil
}

// Missing returns the subset of columns not present in the frame, in the order given.
func (f *Frame) Missing(columns ...string) []string {
	var missing []string
	for _, c := range columns {
		if f.Index(c) < 0 {
			missing = append(missing, c)
		}
	}
	return missing
}
