package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/reage-cli/internal/db"
	"github.com/sells-group/reage-cli/internal/model"
	"github.com/sells-group/reage-cli/internal/resilience"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
	now  func() time.Time
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, now: time.Now}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS analyses (
	id           TEXT PRIMARY KEY,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	file_name    TEXT NOT NULL DEFAULT '',
	fields       JSONB NOT NULL,
	flags        JSONB NOT NULL,
	risk_profile JSONB NOT NULL,
	tags         JSONB NOT NULL DEFAULT '[]'::jsonb
);

CREATE INDEX IF NOT EXISTS idx_analyses_created_at ON analyses(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_analyses_tags ON analyses USING GIN (tags);
`

const postgresColumns = `id, created_at, file_name, fields, flags, risk_profile, tags`

var analysesUpsert = db.UpsertConfig{
	Table:        "analyses",
	Columns:      []string{"id", "created_at", "file_name", "fields", "flags", "risk_profile", "tags"},
	ConflictKeys: []string{"id"},
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, req SaveRequest) (string, error) {
	r, err := encode(req, s.now())
	if err != nil {
		return "", err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO analyses (`+postgresColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		r.id, r.createdAt, r.fileName, r.fields, r.flags, r.risk, r.tags,
	)
	if err != nil {
		return "", eris.Wrap(err, "postgres: insert analysis")
	}
	zap.L().Debug("postgres: saved analysis", zap.String("id", r.id))
	return r.id, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]model.AnalysisRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+postgresColumns+` FROM analyses ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list analyses")
	}
	defer rows.Close()

	records := []model.AnalysisRecord{}
	for rows.Next() {
		rec, err := scanPgRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, eris.Wrap(rows.Err(), "postgres: list analyses iterate")
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*model.AnalysisRecord, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+postgresColumns+` FROM analyses WHERE id = $1`, id)
	rec, err := scanPgRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

func (s *PostgresStore) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM analyses WHERE id = $1`, id)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: delete analysis %s", id)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) Clear(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM analyses`)
	return eris.Wrap(err, "postgres: clear analyses")
}

func (s *PostgresStore) UpdateTags(ctx context.Context, id string, tags []string) error {
	b, err := marshalTags(tags)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `UPDATE analyses SET tags = $1 WHERE id = $2`, b, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: update tags %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "store: analysis %s", id)
	}
	return nil
}

func (s *PostgresStore) Import(ctx context.Context, reqs []SaveRequest) (int, error) {
	now := s.now()
	rows := make([][]any, 0, len(reqs))
	for _, req := range reqs {
		r, err := encode(req, now)
		if err != nil {
			return 0, err
		}
		rows = append(rows, []any{r.id, r.createdAt, r.fileName, string(r.fields), string(r.flags), string(r.risk), string(r.tags)})
	}
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("postgres", "import")
	n, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (int64, error) {
		return db.BulkUpsert(ctx, s.pool, analysesUpsert, rows)
	})
	if err != nil {
		return 0, eris.Wrap(err, "postgres: import analyses")
	}
	return int(n), nil
}

func scanPgRecord(sc pgx.Row) (*model.AnalysisRecord, error) {
	var r row
	err := sc.Scan(&r.id, &r.createdAt, &r.fileName, &r.fields, &r.flags, &r.risk, &r.tags)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan analysis")
	}
	return r.decode()
}
