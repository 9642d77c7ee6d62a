package warehouse

import (
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/sells-group/customer-pipeline/internal/db"
	"github.com/sells-group/customer-pipeline/internal/frame"
)

// Postgres column types produced by InferColumns.
const (
	TypeText      = "TEXT"
	TypeBigint    = "BIGINT"
	TypeDouble    = "DOUBLE PRECISION"
	TypeBoolean   = "BOOLEAN"
	TypeTimestamp = "TIMESTAMPTZ"
)

// InferColumns picks a column type for each frame column from its non-null
// cells. A column with no values, or with cells of mixed kinds, is TEXT and its
// cells are rendered as strings. The returned rows are safe to COPY.
func InferColumns(f *frame.Frame) ([]db.Column, [][]any) {
	cols := make([]db.Column, len(f.Columns))
	for i, name := range f.Columns {
		cols[i] = db.Column{Name: name, Type: inferType(f.Rows, i)}
	}

	rows := make([][]any, len(f.Rows))
	for r, src := range f.Rows {
		row := make([]any, len(cols))
		for i := range cols {
			var v any
			if i < len(src) {
				v = src[i]
			}
			row[i] = coerce(v, cols[i].Type)
		}
		rows[r] = row
	}
	return cols, rows
}

func inferType(rows [][]any, col int) string {
	typ := ""
	for _, row := range rows {
		if col >= len(row) || row[col] == nil {
			continue
		}
		t := typeOf(row[col])
		if typ == "" {
			typ = t
			continue
		}
		if t == typ {
			continue
		}
		// Integers mixed with floats widen to double; anything else is text.
		if (typ == TypeBigint && t == TypeDouble) || (typ == TypeDouble && t == TypeBigint) {
			typ = TypeDouble
			continue
		}
		return TypeText
	}
	if typ == "" {
		return TypeText
	}
	return typ
}

func typeOf(v any) string {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint8, uint16, uint32:
		return TypeBigint
	case float32, float64:
		return TypeDouble
	case bool:
		return TypeBoolean
	case time.Time:
		return TypeTimestamp
	default:
		return TypeText
	}
}

func coerce(v any, typ string) any {
	if v == nil {
		return nil
	}
	switch typ {
	case TypeText:
		if s, ok := v.(string); ok {
			return s
		}
		if t, ok := v.(time.Time); ok {
			return t.Format(time.RFC3339Nano)
		}
		return fmt.Sprint(v)
	case TypeDouble:
		switch n := v.(type) {
		case float64:
			return n
		case float32:
			return float64(n)
		default:
			return float64(toInt64(v))
		}
	case TypeBigint:
		return toInt64(v)
	}
	return v
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int8:
		return int64(n)
	case int16:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	case uint8:
		return int64(n)
	case uint16:
		return int64(n)
	case uint32:
		return int64(n)
	}
	return 0
}

// normalize maps a decoded Postgres value onto the small set of cell types a
// frame carries: string, int64, float64, bool, time.Time or nil.
func normalize(v any) any {
	switch n := v.(type) {
	case nil, string, int64, float64, bool, time.Time:
		return n
	case int16, int32, int8, int:
		return toInt64(n)
	case float32:
		return float64(n)
	case []byte:
		return string(n)
	case pgtype.Numeric:
		if f, err := n.Float64Value(); err == nil && f.Valid {
			return f.Float64
		}
		return nil
	case fmt.Stringer:
		return n.String()
	default:
		return fmt.Sprint(n)
	}
}
