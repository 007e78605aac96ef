package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/sells-group/reage-cli/internal/model"
	"github.com/sells-group/reage-cli/internal/resilience"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS analyses (
	id           TEXT PRIMARY KEY,
	created_at   DATETIME NOT NULL,
	file_name    TEXT NOT NULL DEFAULT '',
	fields       TEXT NOT NULL,
	flags        TEXT NOT NULL,
	risk_profile TEXT NOT NULL,
	tags         TEXT NOT NULL DEFAULT '[]'
);

CREATE INDEX IF NOT EXISTS idx_analyses_created_at ON analyses(created_at);
`

const sqliteColumns = `id, created_at, file_name, fields, flags, risk_profile, tags`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Save(ctx context.Context, req SaveRequest) (string, error) {
	r, err := encode(req, s.now())
	if err != nil {
		return "", err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO analyses (`+sqliteColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.id, r.createdAt, r.fileName, string(r.fields), string(r.flags), string(r.risk), string(r.tags),
	)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: insert analysis")
	}
	zap.L().Debug("sqlite: saved analysis", zap.String("id", r.id))
	return r.id, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]model.AnalysisRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteColumns+` FROM analyses ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list analyses")
	}
	defer rows.Close()

	records := []model.AnalysisRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: list analyses iterate")
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*model.AnalysisRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteColumns+` FROM analyses WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return rec, err
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM analyses WHERE id = ?`, id)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: delete analysis %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	return n > 0, nil
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM analyses`)
	return eris.Wrap(err, "sqlite: clear analyses")
}

func (s *SQLiteStore) UpdateTags(ctx context.Context, id string, tags []string) error {
	b, err := marshalTags(tags)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE analyses SET tags = ? WHERE id = ?`, string(b), id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update tags %s", id)
	}
	return checkRowsAffected(res, id)
}

// Import upserts reqs in one transaction, retried while the database is
// locked by another writer.
func (s *SQLiteStore) Import(ctx context.Context, reqs []SaveRequest) (int, error) {
	if len(reqs) == 0 {
		return 0, nil
	}
	now := s.now()
	rows := make([]row, 0, len(reqs))
	for _, req := range reqs {
		r, err := encode(req, now)
		if err != nil {
			return 0, err
		}
		rows = append(rows, r)
	}

	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("sqlite", "import")
	if err := resilience.Do(ctx, retry, func(ctx context.Context) error {
		return s.importRows(ctx, rows)
	}); err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (s *SQLiteStore) importRows(ctx context.Context, rows []row) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: import begin")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO analyses (`+sqliteColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			created_at = excluded.created_at,
			file_name = excluded.file_name,
			fields = excluded.fields,
			flags = excluded.flags,
			risk_profile = excluded.risk_profile,
			tags = excluded.tags`)
	if err != nil {
		return eris.Wrap(err, "sqlite: import prepare")
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx,
			r.id, r.createdAt, r.fileName, string(r.fields), string(r.flags), string(r.risk), string(r.tags),
		); err != nil {
			return eris.Wrapf(err, "sqlite: import analysis %s", r.id)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: import commit")
}

// helpers

func checkRowsAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "store: analysis %s", id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRecord(sc scannable) (*model.AnalysisRecord, error) {
	var r row
	var fields, flags, risk, tags string
	err := sc.Scan(&r.id, &r.createdAt, &r.fileName, &fields, &flags, &risk, &tags)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan analysis")
	}
	r.fields, r.flags, r.risk, r.tags = []byte(fields), []byte(flags), []byte(risk), []byte(tags)
	return r.decode()
}
