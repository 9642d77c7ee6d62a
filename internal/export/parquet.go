package export

import (
	"bytes"

	"github.com/rotisserie/eris"
	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/sells-group/customer-pipeline/internal/frame"
	"github.com/sells-group/customer-pipeline/internal/transform"
)

// customerRecord is the Parquet row layout. Every column is an optional UTF8
// string so nulls survive the round trip.
type customerRecord struct {
	CustomerID       *string `parquet:"name=customer_id, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	CustomerName     *string `parquet:"name=customer_name, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	CustomerProvince *string `parquet:"name=customer_province, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	Date             *string `parquet:"name=date, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	Recency          *string `parquet:"name=recency, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
}

// EncodeParquet renders a customer dimension frame as a Snappy-compressed
// Parquet file. f must carry the customer dimension columns.
func EncodeParquet(f *frame.Frame) ([]byte, error) {
	if f == nil {
		return nil, eris.New("export: parquet: nil frame")
	}
	if missing := f.Missing(transform.OutputColumns...); len(missing) > 0 {
		return nil, eris.Errorf("export: parquet: frame is missing column(s) %v", missing)
	}

	idx := make([]int, len(transform.OutputColumns))
	for i, c := range transform.OutputColumns {
		idx[i] = f.Index(c)
	}

	var buf bytes.Buffer
	pw, err := writer.NewParquetWriter(writerfile.NewWriterFile(&buf), new(customerRecord), 1)
	if err != nil {
		return nil, eris.Wrap(err, "export: parquet: create writer")
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for i, row := range f.Rows {
		rec := customerRecord{
			CustomerID:       optional(row, idx[0]),
			CustomerName:     optional(row, idx[1]),
			CustomerProvince: optional(row, idx[2]),
			Date:             optional(row, idx[3]),
			Recency:          optional(row, idx[4]),
		}
		if err := pw.Write(rec); err != nil {
			return nil, eris.Wrapf(err, "export: parquet: write row %d", i+1)
		}
	}

	if err := pw.WriteStop(); err != nil {
		return nil, eris.Wrap(err, "export: parquet: finalize")
	}
	return buf.Bytes(), nil
}

func optional(row []any, i int) *string {
	if i >= len(row) || row[i] == nil {
		return nil
	}
	s := cellString(row[i])
	return &s
}
