package store

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/reage-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock, now: func() time.Time { return fixedNow }}
	return s, mock
}

var recordColumns = []string{"id", "created_at", "file_name", "fields", "flags", "risk_profile", "tags"}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS analyses`).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Save(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	req := sampleRequest()

	mock.ExpectExec(`INSERT INTO analyses \(id, created_at, file_name, fields, flags, risk_profile, tags\) VALUES \(\$1, \$2, \$3, \$4, \$5, \$6, \$7\)`).
		WithArgs(pgxmock.AnyArg(), fixedNow, "march.txt", mustJSON(t, req.Fields), mustJSON(t, req.Flags),
			mustJSON(t, req.RiskProfile), []byte(`["march"]`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	id, err := s.Save(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, id, 36)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Save_Error(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO analyses`).WillReturnError(fmt.Errorf("connection refused"))

	_, err := s.Save(context.Background(), sampleRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: insert analysis")
}

func TestPostgresStore_Get(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	req := sampleRequest()

	rows := pgxmock.NewRows(recordColumns).AddRow(
		"abc", fixedNow, "march.txt", mustJSON(t, req.Fields), mustJSON(t, req.Flags),
		mustJSON(t, req.RiskProfile), []byte(`["march"]`))
	mock.ExpectQuery(`SELECT id, created_at, file_name, fields, flags, risk_profile, tags FROM analyses WHERE id = \$1`).
		WithArgs("abc").
		WillReturnRows(rows)

	got, err := s.Get(context.Background(), "abc")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "abc", got.ID)
	assert.Equal(t, req.Fields, got.Fields)
	assert.Equal(t, req.Flags, got.Flags)
	assert.Equal(t, []string{"march"}, got.Tags)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Get_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .* FROM analyses WHERE id = \$1`).
		WithArgs("nonexistent").
		WillReturnError(pgx.ErrNoRows)

	got, err := s.Get(context.Background(), "nonexistent")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Get_CorruptJSON(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	rows := pgxmock.NewRows(recordColumns).AddRow(
		"abc", fixedNow, "", []byte(`{"dofd":`), []byte(`[]`), []byte(`{}`), []byte(`[]`))
	mock.ExpectQuery(`SELECT .* FROM analyses WHERE id = \$1`).WithArgs("abc").WillReturnRows(rows)

	_, err := s.Get(context.Background(), "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal fields of abc")
}

func TestPostgresStore_List(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	rows := pgxmock.NewRows(recordColumns).
		AddRow("b", fixedNow, "", []byte(`{}`), []byte(`[]`), []byte(`{}`), []byte(`[]`)).
		AddRow("a", fixedNow.AddDate(0, -1, 0), "", []byte(`{"dofd":"2020-01-01"}`), []byte(`[]`), []byte(`{}`), []byte(`[]`))
	mock.ExpectQuery(`SELECT .* FROM analyses ORDER BY created_at DESC, id`).WillReturnRows(rows)

	list, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].ID)
	assert.Equal(t, "2020-01-01", list[1].Fields[model.FieldDOFD])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Delete(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM analyses WHERE id = \$1`).WithArgs("abc").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`DELETE FROM analyses WHERE id = \$1`).WithArgs("abc").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	ok, err := s.Delete(context.Background(), "abc")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Delete(context.Background(), "abc")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Clear(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM analyses$`).WillReturnResult(pgxmock.NewResult("DELETE", 4))

	require.NoError(t, s.Clear(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateTags(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE analyses SET tags = \$1 WHERE id = \$2`).
		WithArgs([]byte(`["disputed"]`), "abc").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE analyses SET tags = \$1 WHERE id = \$2`).
		WithArgs([]byte(`[]`), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.NoError(t, s.UpdateTags(context.Background(), "abc", []string{"disputed"}))

	err := s.UpdateTags(context.Background(), "missing", nil)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Import(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_analyses"`).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_analyses"}, recordColumns).WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "analyses" .* ON CONFLICT \("id"\) DO UPDATE SET`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	a, b := sampleRequest(), sampleRequest()
	a.ID = "a"
	n, err := s.Import(context.Background(), []SaveRequest{a, b})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Import_Empty(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	n, err := s.Import(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
