package export

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xitongsys/parquet-go-source/buffer"
	"github.com/xitongsys/parquet-go/reader"

	"github.com/sells-group/customer-pipeline/internal/frame"
	"github.com/sells-group/customer-pipeline/internal/objectstore"
	"github.com/sells-group/customer-pipeline/internal/transform"
)

func customers() *frame.Frame {
	f := frame.New(transform.OutputColumns...)
	f.Rows = append(f.Rows,
		[]any{"C1", "Ann, Jr.", "ON", "2023-11-30", "2023-11-30"},
		[]any{"C2", nil, "QC", "2023-11-30", "2023-11-30"},
	)
	return f
}

func keyFor(file string) string { return "acct/customer/" + file }

func TestEncodeCSV(t *testing.T) {
	body, err := EncodeCSV(customers())
	require.NoError(t, err)
	assert.Equal(t,
		"customer_id,customer_name,customer_province,date,recency\n"+
			"C1,\"Ann, Jr.\",ON,2023-11-30,2023-11-30\n"+
			"C2,,QC,2023-11-30,2023-11-30\n",
		string(body))
}

func TestEncodeCSV_Empty(t *testing.T) {
	body, err := EncodeCSV(frame.New(transform.OutputColumns...))
	require.NoError(t, err)
	assert.Equal(t, "customer_id,customer_name,customer_province,date,recency\n", string(body))
}

func TestEncodeParquet_RoundTrip(t *testing.T) {
	body, err := EncodeParquet(customers())
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(body), 8)
	assert.Equal(t, "PAR1", string(body[:4]))
	assert.Equal(t, "PAR1", string(body[len(body)-4:]))

	pf := buffer.NewBufferFileFromBytes(body)
	pr, err := reader.NewParquetReader(pf, new(customerRecord), 1)
	require.NoError(t, err)
	defer pr.ReadStop()

	require.Equal(t, int64(2), pr.GetNumRows())
	recs := make([]customerRecord, 2)
	require.NoError(t, pr.Read(&recs))

	require.NotNil(t, recs[0].CustomerName)
	assert.Equal(t, "Ann, Jr.", *recs[0].CustomerName)
	assert.Nil(t, recs[1].CustomerName)
	require.NotNil(t, recs[1].Recency)
	assert.Equal(t, "2023-11-30", *recs[1].Recency)
}

func TestEncodeParquet_MissingColumns(t *testing.T) {
	_, err := EncodeParquet(frame.New("customer_id"))
	assert.Error(t, err)
}

func TestExporter_Write(t *testing.T) {
	store := objectstore.NewMemory()
	e := New(store, "bucket", keyFor)
	ctx := context.Background()

	key, err := e.WriteCSV(ctx, customers())
	require.NoError(t, err)
	assert.Equal(t, "acct/customer/customer.csv", key)
	body, ct, ok := store.Object("bucket", key)
	require.True(t, ok)
	assert.Equal(t, ContentTypeCSV, ct)
	assert.Contains(t, string(body), "C2,,QC")

	key, err = e.WriteParquet(ctx, customers())
	require.NoError(t, err)
	assert.Equal(t, "acct/customer/customer.parquet", key)
	body, ct, ok = store.Object("bucket", key)
	require.True(t, ok)
	assert.Equal(t, ContentTypeParquet, ct)
	assert.Equal(t, "PAR1", string(body[:4]))
}

type failingStore struct{ objectstore.Store }

func (failingStore) Put(context.Context, string, string, []byte, string) error {
	return errors.New("access denied")
}

func TestExporter_UploadError(t *testing.T) {
	_, err := New(failingStore{}, "bucket", keyFor).WriteCSV(context.Background(), customers())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "export: upload acct/customer/customer.csv")
}
