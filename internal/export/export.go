// Package export renders the customer dimension as CSV or Parquet and uploads
// it to the object store under <account>/customer/.
package export

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/customer-pipeline/internal/frame"
	"github.com/sells-group/customer-pipeline/internal/objectstore"
)

// Object names under the account prefix.
const (
	CSVFile     = "customer.csv"
	ParquetFile = "customer.parquet"
)

// Content types set on uploaded objects.
const (
	ContentTypeCSV     = "text/csv"
	ContentTypeParquet = "application/vnd.apache.parquet"
)

// Exporter uploads rendered frames to one bucket.
type Exporter struct {
	store  objectstore.Store
	bucket string
	keyFor func(file string) string
}

// New returns an Exporter writing to bucket. keyFor maps an object name to its
// full key, usually config.OutputConfig.OutputKey.
func New(store objectstore.Store, bucket string, keyFor func(file string) string) *Exporter {
	return &Exporter{store: store, bucket: bucket, keyFor: keyFor}
}

// WriteCSV uploads f as customer.csv and returns the object key.
func (e *Exporter) WriteCSV(ctx context.Context, f *frame.Frame) (string, error) {
	body, err := EncodeCSV(f)
	if err != nil {
		return "", err
	}
	return e.put(ctx, CSVFile, body, ContentTypeCSV, f.NumRows())
}

// WriteParquet uploads f as customer.parquet and returns the object key.
func (e *Exporter) WriteParquet(ctx context.Context, f *frame.Frame) (string, error) {
	body, err := EncodeParquet(f)
	if err != nil {
		return "", err
	}
	return e.put(ctx, ParquetFile, body, ContentTypeParquet, f.NumRows())
}

func (e *Exporter) put(ctx context.Context, file string, body []byte, contentType string, rows int) (string, error) {
	key := e.keyFor(file)
	zap.L().Info("export: uploading",
		zap.String("bucket", e.bucket),
		zap.String("key", key),
		zap.Int("rows", rows),
		zap.Int("bytes", len(body)),
	)
	if err := e.store.Put(ctx, e.bucket, key, body, contentType); err != nil {
		return "", eris.Wrapf(err, "export: upload %s", key)
	}
	zap.L().Info("export: upload complete", zap.String("key", key))
	return key, nil
}

// cellString renders a non-null cell as text.
func cellString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case time.Time:
		return s.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(s)
	}
}
