package warehouse

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/customer-pipeline/internal/db"
	"github.com/sells-group/customer-pipeline/internal/frame"
)

func TestReadTable(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rows := mock.NewRows([]string{"customer_id", "customer_name", "recency"}).
		AddRow("C1", "Ann", "2023-11-30").
		AddRow("C2", nil, "2023-11-30")
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "customer"`)).WillReturnRows(rows)

	w := New(mock, db.ReplaceStaged)
	f, err := w.ReadTable(context.Background(), "customer")
	require.NoError(t, err)
	assert.Equal(t, []string{"customer_id", "customer_name", "recency"}, f.Columns)
	require.Equal(t, 2, f.NumRows())
	assert.Equal(t, []any{"C2", nil, "2023-11-30"}, f.Rows[1])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReadTable_EmptyTable(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT").WillReturnRows(mock.NewRows([]string{"customer_id"}))

	f, err := New(mock, "").ReadTable(context.Background(), "customer")
	require.NoError(t, err)
	assert.Equal(t, []string{"customer_id"}, f.Columns)
	assert.Equal(t, 0, f.NumRows())
}

func TestReadTable_MissingTable(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT").WillReturnError(&pgconn.PgError{Code: "42P01", Message: `relation "customer" does not exist`})

	f, err := New(mock, "").ReadTable(context.Background(), "customer")
	require.NoError(t, err)
	assert.Empty(t, f.Columns)
	assert.Equal(t, 0, f.NumRows())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReadTable_QueryError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT").WillReturnError(errors.New("connection refused"))

	_, err = New(mock, "").ReadTable(context.Background(), "customer")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "warehouse: query customer")
}

func TestReplaceTable_Staged(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cols := []string{"customer_id", "customer_name", "customer_province", "date", "recency"}
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DROP TABLE IF EXISTS "customer_new"`)).WillReturnResult(pgxmock.NewResult("DROP", 0))
	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE "customer_new" ("customer_id" TEXT, "customer_name" TEXT, "customer_province" TEXT, "date" TEXT, "recency" TEXT)`)).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"customer_new"}, cols).WillReturnResult(2)
	mock.ExpectExec(regexp.QuoteMeta(`DROP TABLE IF EXISTS "customer"`)).WillReturnResult(pgxmock.NewResult("DROP", 0))
	mock.ExpectExec(regexp.QuoteMeta(`ALTER TABLE "customer_new" RENAME TO "customer"`)).WillReturnResult(pgxmock.NewResult("ALTER", 0))
	mock.ExpectCommit()

	f := frame.New(cols...)
	f.Rows = append(f.Rows,
		[]any{"C1", "Ann", "ON", "2023-11-30", "2023-11-30"},
		[]any{"C2", nil, "QC", "2023-11-30", "2023-11-30"},
	)

	n, err := New(mock, db.ReplaceStaged).ReplaceTable(context.Background(), "customer", f)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceTable_Drop(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("DROP TABLE IF EXISTS").WillReturnResult(pgxmock.NewResult("DROP", 0))
	mock.ExpectExec("CREATE TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"customer"}, []string{"customer_id"}).WillReturnError(errors.New("broken pipe"))

	f := frame.New("customer_id")
	f.Rows = append(f.Rows, []any{"C1"})

	_, err = New(mock, db.ReplaceDrop).ReplaceTable(context.Background(), "customer", f)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "warehouse: replace customer")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceTable_NilFrame(t *testing.T) {
	_, err := New(nil, "").ReplaceTable(context.Background(), "customer", nil)
	assert.Error(t, err)
}

func TestInferColumns(t *testing.T) {
	ts := time.Date(2023, 11, 30, 0, 0, 0, 0, time.UTC)
	f := frame.New("s", "i", "mixed_num", "b", "t", "nulls", "mixed")
	f.Rows = append(f.Rows,
		[]any{"a", int64(1), int64(2), true, ts, nil, "x"},
		[]any{nil, int32(5), 2.5, false, nil, nil, int64(7)},
	)

	cols, rows := InferColumns(f)
	types := make(map[string]string)
	for _, c := range cols {
		types[c.Name] = c.Type
	}
	assert.Equal(t, map[string]string{
		"s":         TypeText,
		"i":         TypeBigint,
		"mixed_num": TypeDouble,
		"b":         TypeBoolean,
		"t":         TypeTimestamp,
		"nulls":     TypeText,
		"mixed":     TypeText,
	}, types)

	assert.Equal(t, []any{"a", int64(1), float64(2), true, ts, nil, "x"}, rows[0])
	assert.Equal(t, []any{nil, int64(5), 2.5, false, nil, nil, "7"}, rows[1])
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, int64(3), normalize(int32(3)))
	assert.Equal(t, "abc", normalize([]byte("abc")))
	assert.Equal(t, float64(float32(1.5)), normalize(float32(1.5)))
	assert.Nil(t, normalize(nil))
}
