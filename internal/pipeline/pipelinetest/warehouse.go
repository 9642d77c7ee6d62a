// Package pipelinetest provides in-memory collaborators for pipeline tests.
package pipelinetest

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/customer-pipeline/internal/frame"
)

// Warehouse is an in-memory pipeline.Warehouse with replace semantics.
type Warehouse struct {
	mu       sync.Mutex
	tables   map[string]*frame.Frame
	reads    int
	writes   int
	readErr  error
	writeErr error
	// DropOnFailedWrite empties the table before returning writeErr, the way a
	// non-transactional drop+create+insert leaves it.
	DropOnFailedWrite bool
}

// NewWarehouse returns an empty Warehouse.
func NewWarehouse() *Warehouse {
	return &Warehouse{tables: make(map[string]*frame.Frame)}
}

// Seed stores f as table.
func (w *Warehouse) Seed(table string, f *frame.Frame) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.tables[table] = clone(f)
}

// FailReads makes every ReadTable return err until cleared with nil.
func (w *Warehouse) FailReads(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.readErr = err
}

// FailWrites makes every ReplaceTable return err until cleared with nil.
func (w *Warehouse) FailWrites(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.writeErr = err
}

// Table returns a copy of table and whether it exists.
func (w *Warehouse) Table(table string) (*frame.Frame, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	f, ok := w.tables[table]
	if !ok {
		return nil, false
	}
	return clone(f), true
}

// Reads returns the number of ReadTable calls.
func (w *Warehouse) Reads() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reads
}

// Writes returns the number of ReplaceTable calls.
func (w *Warehouse) Writes() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writes
}

// ReadTable returns a copy of table, or an empty frame if it does not exist.
func (w *Warehouse) ReadTable(ctx context.Context, table string) (*frame.Frame, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.reads++
	if w.readErr != nil {
		return nil, w.readErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, ok := w.tables[table]
	if !ok {
		return frame.New(), nil
	}
	return clone(f), nil
}

// ReplaceTable replaces table with a copy of f.
func (w *Warehouse) ReplaceTable(ctx context.Context, table string, f *frame.Frame) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.writes++
	if w.writeErr != nil {
		if w.DropOnFailedWrite {
			w.tables[table] = frame.New(f.Columns...)
		}
		return 0, w.writeErr
	}
	if f == nil {
		return 0, eris.New("pipelinetest: nil frame")
	}
	w.tables[table] = clone(f)
	return int64(f.NumRows()), nil
}

func clone(f *frame.Frame) *frame.Frame {
	out := frame.New(f.Columns...)
	for _, row := range f.Rows {
		out.Rows = append(out.Rows, append([]any(nil), row...))
	}
	return out
}
