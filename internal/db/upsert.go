package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// UpsertConfig describes a bulk upsert.
type UpsertConfig struct {
	Table        string   // target table, optionally schema-qualified
	Columns      []string // columns of every row, in row order
	ConflictKeys []string // unique constraint columns
	UpdateCols   []string // columns replaced on conflict; nil = all non-key columns
}

func (c UpsertConfig) validate() error {
	if len(c.Columns) == 0 {
		return eris.New("db: upsert: no columns specified")
	}
	if len(c.ConflictKeys) == 0 {
		return eris.New("db: upsert: no conflict keys specified")
	}
	return nil
}

func (c UpsertConfig) updateCols() []string {
	if c.UpdateCols != nil {
		return c.UpdateCols
	}
	keys := make(map[string]bool, len(c.ConflictKeys))
	for _, k := range c.ConflictKeys {
		keys[k] = true
	}
	var out []string
	for _, col := range c.Columns {
		if !keys[col] {
			out = append(out, col)
		}
	}
	return out
}

// tempTable names the per-transaction staging table for c.Table.
func (c UpsertConfig) tempTable() string {
	return "_tmp_upsert_" + strings.ReplaceAll(c.Table, ".", "_")
}

// mergeSQL builds the INSERT ... SELECT ... ON CONFLICT statement that moves
// staged rows into the target table.
func (c UpsertConfig) mergeSQL() string {
	cols := quoteAndJoin(c.Columns)
	update := c.updateCols()
	action := "DO NOTHING"
	if len(update) > 0 {
		set := make([]string, len(update))
		for i, col := range update {
			q := pgx.Identifier{col}.Sanitize()
			set[i] = fmt.Sprintf("%s = EXCLUDED.%s", q, q)
		}
		action = "DO UPDATE SET " + strings.Join(set, ", ")
	}
	return fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s ON CONFLICT (%s) %s",
		sanitizeTable(c.Table), cols, cols,
		pgx.Identifier{c.tempTable()}.Sanitize(),
		quoteAndJoin(c.ConflictKeys), action)
}

// BulkUpsert stages rows in a temp table via COPY and merges them into the
// target in one transaction. It returns the number of rows merged.
func BulkUpsert(ctx context.Context, pool Pool, cfg UpsertConfig, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if err := cfg.validate(); err != nil {
		return 0, err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: upsert: begin tx")
	}
	defer tx.Rollback(ctx)

	temp := cfg.tempTable()
	create := fmt.Sprintf("CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP",
		pgx.Identifier{temp}.Sanitize(), sanitizeTable(cfg.Table))
	if _, err := tx.Exec(ctx, create); err != nil {
		return 0, eris.Wrapf(err, "db: upsert: create temp table for %s", cfg.Table)
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{temp}, cfg.Columns, pgx.CopyFromRows(rows)); err != nil {
		return 0, eris.Wrapf(err, "db: upsert: copy into temp table for %s", cfg.Table)
	}

	tag, err := tx.Exec(ctx, cfg.mergeSQL())
	if err != nil {
		return 0, eris.Wrapf(err, "db: upsert: merge into %s", cfg.Table)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: upsert: commit tx")
	}
	return tag.RowsAffected(), nil
}

// sanitizeTable quotes a table name, honoring a schema prefix.
func sanitizeTable(table string) string {
	if schema, name, ok := strings.Cut(table, "."); ok {
		return pgx.Identifier{schema, name}.Sanitize()
	}
	return pgx.Identifier{table}.Sanitize()
}

func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
