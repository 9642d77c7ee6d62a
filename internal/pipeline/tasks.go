package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/customer-pipeline/internal/export"
	"github.com/sells-group/customer-pipeline/internal/fetcher"
	"github.com/sells-group/customer-pipeline/internal/frame"
	"github.com/sells-group/customer-pipeline/internal/metrics"
	"github.com/sells-group/customer-pipeline/internal/objectstore"
	"github.com/sells-group/customer-pipeline/internal/transform"
)

// Warehouse is the table surface the tasks read from and write to.
type Warehouse interface {
	ReadTable(ctx context.Context, table string) (*frame.Frame, error)
	ReplaceTable(ctx context.Context, table string, f *frame.Frame) (int64, error)
}

// Tasks holds the resources shared by every task of a run. Each method is one
// attempt of one task; retries belong to the caller.
type Tasks struct {
	Store     objectstore.Store
	Warehouse Warehouse
	Exporter  *export.Exporter
	Bucket    string
	Table     string
}

// ExtractTransactions reads the transaction CSV at key.
func (t *Tasks) ExtractTransactions(ctx context.Context, key string) (*frame.Frame, error) {
	log := zap.L().With(zap.String("task", TaskExtractTransactions), zap.String("bucket", t.Bucket), zap.String("key", key))
	start := time.Now()

	data, err := t.Store.Get(ctx, t.Bucket, key)
	if err != nil {
		kind := classify(err)
		log.Warn("object fetch failed", zap.String("kind", string(kind)), zap.Error(err))
		return nil, taskErr(TaskExtractTransactions, kind, err)
	}

	f, err := fetcher.DecodeFrame(ctx, data)
	if err != nil {
		// Malformed CSV is permanent.
		return nil, taskErr(TaskExtractTransactions, KindPermanent, err)
	}

	log.Info("extracted transactions", zap.Int("rows", f.NumRows()), zap.Duration("elapsed", time.Since(start)))
	metrics.SetRows(TaskExtractTransactions, f.NumRows())
	return f, nil
}

// ExtractCustomerOld reads the current customer table. The result is not
// consumed by any downstream task yet.
func (t *Tasks) ExtractCustomerOld(ctx context.Context) (*frame.Frame, error) {
	start := time.Now()
	f, err := t.Warehouse.ReadTable(ctx, t.Table)
	if err != nil {
		return nil, taskErr(TaskExtractCustomerOld, classify(err), err)
	}
	zap.L().Info("extracted existing customers",
		zap.String("task", TaskExtractCustomerOld),
		zap.String("table", t.Table),
		zap.Int("rows", f.NumRows()),
		zap.Duration("elapsed", time.Since(start)),
	)
	metrics.SetRows(TaskExtractCustomerOld, f.NumRows())
	return f, nil
}

// Transform derives the customer dimension from transactions.
func (t *Tasks) Transform(_ context.Context, transactions *frame.Frame) (*frame.Frame, error) {
	out, err := transform.Customers(transactions)
	if err != nil {
		return nil, taskErr(TaskTransform, KindData, err)
	}
	zap.L().Info("transformed to customers",
		zap.String("task", TaskTransform),
		zap.Int("input_rows", transactions.NumRows()),
		zap.Int("rows", out.NumRows()),
	)
	metrics.SetRows(TaskTransform, out.NumRows())
	return out, nil
}

// LoadPostgres replaces the customer table with customers.
func (t *Tasks) LoadPostgres(ctx context.Context, customers *frame.Frame) (int64, error) {
	zap.L().Info("writing customers to warehouse",
		zap.String("task", TaskLoadPostgres),
		zap.String("table", t.Table),
		zap.Int("rows", customers.NumRows()),
	)
	n, err := t.Warehouse.ReplaceTable(ctx, t.Table, customers)
	if err != nil {
		return 0, taskErr(TaskLoadPostgres, KindWrite, err)
	}
	zap.L().Info("write complete", zap.String("task", TaskLoadPostgres), zap.Int64("rows", n))
	metrics.SetRows(TaskLoadPostgres, int(n))
	return n, nil
}

// LoadCSV uploads customers as CSV and returns the object key.
func (t *Tasks) LoadCSV(ctx context.Context, customers *frame.Frame) (string, error) {
	if t.Exporter == nil {
		return "", taskErr(TaskLoadCSV, KindConfig, errNoExporter)
	}
	key, err := t.Exporter.WriteCSV(ctx, customers)
	if err != nil {
		return "", taskErr(TaskLoadCSV, KindWrite, err)
	}
	metrics.SetRows(TaskLoadCSV, customers.NumRows())
	return key, nil
}

// LoadParquet uploads customers as Parquet and returns the object key.
func (t *Tasks) LoadParquet(ctx context.Context, customers *frame.Frame) (string, error) {
	if t.Exporter == nil {
		return "", taskErr(TaskLoadParquet, KindConfig, errNoExporter)
	}
	key, err := t.Exporter.WriteParquet(ctx, customers)
	if err != nil {
		return "", taskErr(TaskLoadParquet, KindWrite, err)
	}
	metrics.SetRows(TaskLoadParquet, customers.NumRows())
	return key, nil
}
