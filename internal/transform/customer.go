// Package transform derives the customer dimension from transaction rows.
package transform

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/customer-pipeline/internal/frame"
)

// Customer dimension columns.
const (
	ColCustomerID       = "customer_id"
	ColCustomerName     = "customer_name"
	ColCustomerProvince = "customer_province"
	ColDate             = "date"
	ColRecency          = "recency"
)

// KeyColumns are the projected transaction columns that identify a customer row.
var KeyColumns = []string{ColCustomerID, ColCustomerName, ColCustomerProvince, ColDate}

// OutputColumns is the schema of the customer dimension.
var OutputColumns = []string{ColCustomerID, ColCustomerName, ColCustomerProvince, ColDate, ColRecency}

// DataError reports input that cannot be projected to the customer dimension.
// Retrying never fixes it.
type DataError struct {
	Msg string
}

func (e *DataError) Error() string { return "transform: " + e.Msg }

// IsDataError reports whether err is or wraps a *DataError.
func IsDataError(err error) bool {
	var de *DataError
	return errors.As(err, &de)
}

// Customers projects f onto the key columns, drops duplicate rows keeping the
// first occurrence, and appends recency as a copy of date. Nulls compare equal
// to each other. Extra input columns are ignored.
func Customers(f *frame.Frame) (*frame.Frame, error) {
	if f == nil {
		return nil, eris.Wrap(&DataError{Msg: "nil input frame"}, "transform: customers")
	}
	if missing := f.Missing(KeyColumns...); len(missing) > 0 {
		return nil, eris.Wrap(&DataError{Msg: "input is missing column(s) " + quoteList(missing)}, "transform: customers")
	}

	idx := make([]int, len(KeyColumns))
	for i, c := range KeyColumns {
		idx[i] = f.Index(c)
	}

	d := NewDeduper()
	out := frame.New(OutputColumns...)
	for r, row := range f.Rows {
		var rec [4]any
		for i, j := range idx {
			if j < len(row) {
				rec[i] = row[j]
			}
		}
		emitted, ok, err := d.Add(rec)
		if err != nil {
			return nil, eris.Wrapf(err, "transform: row %d", r+1)
		}
		if ok {
			out.Rows = append(out.Rows, emitted)
		}
	}
	return out, nil
}

// Deduper emits customer rows from a stream of projected records, dropping
// repeats of records it has already seen.
type Deduper struct {
	seen map[[4]any]struct{}
}

// NewDeduper returns an empty Deduper.
func NewDeduper() *Deduper {
	return &Deduper{seen: make(map[[4]any]struct{})}
}

// Add takes a (customer_id, customer_name, customer_province, date) record and
// returns the five-column output row if the record is new. Cells must be
// scalars; nil is null.
func (d *Deduper) Add(rec [4]any) ([]any, bool, error) {
	for i, v := range rec {
		if !isScalar(v) {
			return nil, false, &DataError{Msg: "column " + KeyColumns[i] + " holds a non-scalar value"}
		}
	}
	if _, dup := d.seen[rec]; dup {
		return nil, false, nil
	}
	d.seen[rec] = struct{}{}
	return []any{rec[0], rec[1], rec[2], rec[3], rec[3]}, true, nil
}

// Len returns the number of distinct records seen.
func (d *Deduper) Len() int { return len(d.seen) }

func isScalar(v any) bool {
	switch v.(type) {
	case nil, string, bool, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, float32, float64, time.Time:
		return true
	}
	return false
}

func quoteList(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = strconv.Quote(c)
	}
	return strings.Join(quoted, ", ")
}
