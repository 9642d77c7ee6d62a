// Package warehouse reads and replaces tables in the Postgres data warehouse.
package warehouse

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/customer-pipeline/internal/config"
	"github.com/sells-group/customer-pipeline/internal/db"
	"github.com/sells-group/customer-pipeline/internal/frame"
)

// undefinedTable is the SQLSTATE for a missing relation.
const undefinedTable = "42P01"

// Warehouse is a handle on the customer warehouse database.
type Warehouse struct {
	pool db.Pool
	mode db.ReplaceMode
}

// Open creates a lazily connected pool for the configured warehouse. No
// connection is made until the first query.
func Open(ctx context.Context, pg config.PostgresConfig, wh config.WarehouseConfig) (*Warehouse, func(), error) {
	poolCfg, err := pgxpool.ParseConfig(pg.URL())
	if err != nil {
		return nil, nil, eris.Wrap(err, "warehouse: parse connection string")
	}
	poolCfg.MaxConns = 4
	poolCfg.MinConns = 0
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, eris.Wrap(err, "warehouse: create connection pool")
	}

	zap.L().Debug("warehouse: pool created", zap.String("dsn", pg.RedactedURL()))
	return New(pool, db.ReplaceMode(wh.ReplaceMode)), pool.Close, nil
}

// New wraps an existing pool.
func New(pool db.Pool, mode db.ReplaceMode) *Warehouse {
	if mode == "" {
		mode = db.ReplaceStaged
	}
	return &Warehouse{pool: pool, mode: mode}
}

// ReadTable returns every row of table. A table that does not exist yet reads
// as an empty frame with no columns.
func (w *Warehouse) ReadTable(ctx context.Context, table string) (*frame.Frame, error) {
	log := zap.L().With(zap.String("table", table))

	rows, err := w.pool.Query(ctx, "SELECT * FROM "+db.Identifier(table).Sanitize())
	if err != nil {
		if isUndefinedTable(err) {
			log.Warn("warehouse: table does not exist, treating as empty")
			return frame.New(), nil
		}
		return nil, eris.Wrapf(err, "warehouse: query %s", table)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	cols := make([]string, len(fields))
	for i, fd := range fields {
		cols[i] = fd.Name
	}
	f := frame.New(cols...)

	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, eris.Wrapf(err, "warehouse: scan %s", table)
		}
		row := make([]any, len(vals))
		for i, v := range vals {
			row[i] = normalize(v)
		}
		f.Rows = append(f.Rows, row)
	}
	if err := rows.Err(); err != nil {
		if isUndefinedTable(err) {
			log.Warn("warehouse: table does not exist, treating as empty")
			return frame.New(), nil
		}
		return nil, eris.Wrapf(err, "warehouse: read %s", table)
	}

	log.Info("warehouse: read table", zap.Int("rows", f.NumRows()))
	return f, nil
}

// ReplaceTable replaces table with the contents of f. Column types are
// inferred from the cells.
func (w *Warehouse) ReplaceTable(ctx context.Context, table string, f *frame.Frame) (int64, error) {
	if f == nil {
		return 0, eris.New("warehouse: replace: nil frame")
	}
	cols, rows := InferColumns(f)

	zap.L().Info("warehouse: replacing table",
		zap.String("table", table),
		zap.String("mode", string(w.mode)),
		zap.Int("rows", len(rows)),
	)

	n, err := db.ReplaceTable(ctx, w.pool, db.ReplaceConfig{
		Table:   table,
		Columns: cols,
		Mode:    w.mode,
	}, rows)
	if err != nil {
		return 0, eris.Wrapf(err, "warehouse: replace %s", table)
	}
	return n, nil
}

func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == undefinedTable
}

// Ensure *pgxpool.Pool satisfies db.Pool.
var _ db.Pool = (*pgxpool.Pool)(nil)

// Ensure pgx.Tx satisfies db.Conn.
var _ db.Conn = (pgx.Tx)(nil)
