package export

import (
	"bytes"
	"encoding/csv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/customer-pipeline/internal/frame"
)

// EncodeCSV renders f with a header row. Nulls become empty fields.
func EncodeCSV(f *frame.Frame) ([]byte, error) {
	if f == nil {
		return nil, eris.New("export: csv: nil frame")
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(f.Columns); err != nil {
		return nil, eris.Wrap(err, "export: csv: write header")
	}

	record := make([]string, len(f.Columns))
	for i, row := range f.Rows {
		for j := range record {
			record[j] = ""
			if j < len(row) && row[j] != nil {
				record[j] = cellString(row[j])
			}
		}
		if err := w.Write(record); err != nil {
			return nil, eris.Wrapf(err, "export: csv: write row %d", i+1)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, eris.Wrap(err, "export: csv: flush")
	}
	return buf.Bytes(), nil
}
