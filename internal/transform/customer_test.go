package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/sells-group/customer-pipeline/internal/frame"
)

func transactions(rows ...[]any) *frame.Frame {
	f := frame.New("transaction_id", "customer_id", "customer_name", "customer_province", "date", "amount")
	f.Rows = append(f.Rows, rows...)
	return f
}

func TestCustomers_ProjectsAndDedups(t *testing.T) {
	in := transactions(
		[]any{"T1", "C1", "Ann", "ON", "2023-11-30", "10"},
		[]any{"T2", "C2", "Bob", "QC", "2023-11-30", "20"},
		[]any{"T3", "C1", "Ann", "ON", "2023-11-30", "30"},
	)

	out, err := Customers(in)
	require.NoError(t, err)
	assert.Equal(t, OutputColumns, out.Columns)
	assert.Equal(t, [][]any{
		{"C1", "Ann", "ON", "2023-11-30", "2023-11-30"},
		{"C2", "Bob", "QC", "2023-11-30", "2023-11-30"},
	}, out.Rows)
}

func TestCustomers_EmptyInput(t *testing.T) {
	out, err := Customers(transactions())
	require.NoError(t, err)
	assert.Equal(t, OutputColumns, out.Columns)
	assert.Equal(t, 0, out.NumRows())
}

func TestCustomers_AllDuplicates(t *testing.T) {
	row := []any{"T1", "C9", "Zoe", "BC", "2024-01-02", "5"}
	out, err := Customers(transactions(row, row, row, row, row))
	require.NoError(t, err)
	require.Equal(t, 1, out.NumRows())
	assert.Equal(t, "2024-01-02", out.Rows[0][4])
}

func TestCustomers_MissingColumn(t *testing.T) {
	in := frame.New("customer_id", "customer_name", "date")
	_, err := Customers(in)
	require.Error(t, err)
	assert.True(t, IsDataError(err))
	assert.Contains(t, err.Error(), `"customer_province"`)
}

func TestCustomers_NilFrame(t *testing.T) {
	_, err := Customers(nil)
	assert.True(t, IsDataError(err))
}

func TestCustomers_NullsCompareEqual(t *testing.T) {
	in := transactions(
		[]any{"T1", "C1", nil, "ON", "2023-11-30", "1"},
		[]any{"T2", "C1", nil, "ON", "2023-11-30", "2"},
		[]any{"T3", "C1", "", "ON", "2023-11-30", "3"},
	)
	out, err := Customers(in)
	require.NoError(t, err)
	assert.Equal(t, [][]any{
		{"C1", nil, "ON", "2023-11-30", "2023-11-30"},
		{"C1", "", "ON", "2023-11-30", "2023-11-30"},
	}, out.Rows)
}

func TestCustomers_NonScalarCell(t *testing.T) {
	in := transactions([]any{"T1", []string{"x"}, "Ann", "ON", "2023-11-30", "1"})
	_, err := Customers(in)
	require.Error(t, err)
	assert.True(t, IsDataError(err))
	assert.Contains(t, err.Error(), "row 1")
}

func TestDeduper(t *testing.T) {
	d := NewDeduper()
	_, ok, err := d.Add([4]any{"C1", "Ann", "ON", "d"})
	require.NoError(t, err)
	assert.True(t, ok)
	_, ok, _ = d.Add([4]any{"C1", "Ann", "ON", "d"})
	assert.False(t, ok)
	assert.Equal(t, 1, d.Len())
}

var cellGen = rapid.SampledFrom([]any{nil, "", "a", "b", "c"})

func genTransactions(t *rapid.T) *frame.Frame {
	n := rapid.IntRange(0, 40).Draw(t, "rows")
	f := transactions()
	for i := 0; i < n; i++ {
		f.Rows = append(f.Rows, []any{
			"T",
			cellGen.Draw(t, "id"),
			cellGen.Draw(t, "name"),
			cellGen.Draw(t, "province"),
			cellGen.Draw(t, "date"),
			"0",
		})
	}
	return f
}

func TestCustomers_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		in := genTransactions(t)
		out, err := Customers(in)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(out.Columns) != len(OutputColumns) {
			t.Fatalf("columns = %v", out.Columns)
		}
		for i, c := range OutputColumns {
			if out.Columns[i] != c {
				t.Fatalf("columns = %v", out.Columns)
			}
		}

		if out.NumRows() > in.NumRows() {
			t.Fatalf("output has %d rows, input %d", out.NumRows(), in.NumRows())
		}

		seen := make(map[[4]any]bool)
		for _, row := range out.Rows {
			key := [4]any{row[0], row[1], row[2], row[3]}
			if seen[key] {
				t.Fatalf("duplicate row %v", row)
			}
			seen[key] = true
			if row[4] != row[3] {
				t.Fatalf("recency %v != date %v", row[4], row[3])
			}
		}

		// Re-running on the projected columns is a no-op.
		again := frame.New(KeyColumns...)
		for _, row := range out.Rows {
			again.Rows = append(again.Rows, row[:4])
		}
		out2, err := Customers(again)
		if err != nil {
			t.Fatalf("second pass: %v", err)
		}
		if out2.NumRows() != out.NumRows() {
			t.Fatalf("second pass changed row count: %d -> %d", out.NumRows(), out2.NumRows())
		}
		for i := range out.Rows {
			for j := 0; j < 4; j++ {
				if out.Rows[i][j] != out2.Rows[i][j] {
					t.Fatalf("second pass changed row %d: %v -> %v", i, out.Rows[i], out2.Rows[i])
				}
			}
		}
	})
}
