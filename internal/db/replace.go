package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ReplaceMode selects how an existing table is swapped for new contents.
type ReplaceMode string

const (
	// ReplaceStaged loads a staging table and swaps it in within one transaction.
	// Readers see either the old or the new contents, never a partial table.
	ReplaceStaged ReplaceMode = "staged"

	// ReplaceDrop drops, recreates and loads the table as separate statements.
	// A failure after the drop leaves the table missing, empty or partially loaded.
	ReplaceDrop ReplaceMode = "drop"
)

// Column is a column definition for a replaced table.
type Column struct {
	Name string
	Type string // SQL type, e.g. TEXT
}

// ReplaceConfig defines the parameters of a table replacement.
type ReplaceConfig struct {
	Table   string // target table, optionally schema-qualified
	Columns []Column
	Mode    ReplaceMode
}

// ReplaceTable discards the current contents of cfg.Table and loads rows into a
// fresh table with the given columns. Returns the number of rows copied.
func ReplaceTable(ctx context.Context, pool Pool, cfg ReplaceConfig, rows [][]any) (int64, error) {
	if cfg.Table == "" {
		return 0, eris.New("db: replace: no table specified")
	}
	if len(cfg.Columns) == 0 {
		return 0, eris.New("db: replace: no columns specified")
	}

	switch cfg.Mode {
	case ReplaceStaged, "":
		return replaceStaged(ctx, pool, cfg, rows)
	case ReplaceDrop:
		return replaceDrop(ctx, pool, cfg, rows)
	default:
		return 0, eris.Errorf("db: replace: unknown mode %q", cfg.Mode)
	}
}

// replaceStaged:
// 1. CREATE <table>_new
// 2. COPY rows into <table>_new
// 3. DROP <table>, RENAME <table>_new TO <table>
// all in one transaction.
func replaceStaged(ctx context.Context, pool Pool, cfg ReplaceConfig, rows [][]any) (int64, error) {
	staging := stagingName(cfg.Table)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: replace: begin tx")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DROP TABLE IF EXISTS "+sanitizeTable(staging)); err != nil {
		return 0, eris.Wrapf(err, "db: replace: clear staging table %s", staging)
	}
	if _, err := tx.Exec(ctx, createSQL(staging, cfg.Columns)); err != nil {
		return 0, eris.Wrapf(err, "db: replace: create staging table %s", staging)
	}

	n, err := CopyFrom(ctx, tx, staging, columnNames(cfg.Columns), rows)
	if err != nil {
		return 0, eris.Wrapf(err, "db: replace: load %s", staging)
	}

	if _, err := tx.Exec(ctx, "DROP TABLE IF EXISTS "+sanitizeTable(cfg.Table)); err != nil {
		return 0, eris.Wrapf(err, "db: replace: drop %s", cfg.Table)
	}
	renameSQL := fmt.Sprintf("ALTER TABLE %s RENAME TO %s",
		sanitizeTable(staging),
		pgx.Identifier{baseName(cfg.Table)}.Sanitize(),
	)
	if _, err := tx.Exec(ctx, renameSQL); err != nil {
		return 0, eris.Wrapf(err, "db: replace: rename %s to %s", staging, cfg.Table)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: replace: commit tx")
	}
	return n, nil
}

func replaceDrop(ctx context.Context, pool Pool, cfg ReplaceConfig, rows [][]any) (int64, error) {
	if _, err := pool.Exec(ctx, "DROP TABLE IF EXISTS "+sanitizeTable(cfg.Table)); err != nil {
		return 0, eris.Wrapf(err, "db: replace: drop %s", cfg.Table)
	}
	if _, err := pool.Exec(ctx, createSQL(cfg.Table, cfg.Columns)); err != nil {
		return 0, eris.Wrapf(err, "db: replace: create %s", cfg.Table)
	}

	n, err := CopyFrom(ctx, pool, cfg.Table, columnNames(cfg.Columns), rows)
	if err != nil {
		zap.L().Warn("db: replace: table left incomplete after failed load",
			zap.String("table", cfg.Table),
			zap.Error(err),
		)
		return 0, eris.Wrapf(err, "db: replace: load %s", cfg.Table)
	}
	return n, nil
}

func createSQL(table string, cols []Column) string {
	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = pgx.Identifier{c.Name}.Sanitize() + " " + c.Type
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", sanitizeTable(table), strings.Join(defs, ", "))
}

func columnNames(cols []Column) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

func stagingName(table string) string {
	return table + "_new"
}

func baseName(table string) string {
	if i := strings.LastIndex(table, "."); i >= 0 {
		return table[i+1:]
	}
	return table
}
