package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBulkUpsert_EmptyRows(t *testing.T) {
	n, err := BulkUpsert(context.Background(), nil, UpsertConfig{
		Table:        "match_cache",
		Columns:      []string{"source", "company_name"},
		ConflictKeys: []string{"source"},
	}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestBulkUpsert_Validation(t *testing.T) {
	_, err := BulkUpsert(context.Background(), nil, UpsertConfig{
		Table:        "match_cache",
		ConflictKeys: []string{"source"},
	}, [][]any{{"a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")

	_, err = BulkUpsert(context.Background(), nil, UpsertConfig{
		Table:   "match_cache",
		Columns: []string{"source"},
	}, [][]any{{"a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no conflict keys specified")
}

func TestBulkUpsert_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cols := []string{"source", "company_name", "matched_name"}
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_stage_match_cache"}, cols).WillReturnResult(2)
	mock.ExpectExec("INSERT INTO").WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()
	mock.ExpectRollback()

	n, err := BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "match_cache",
		Columns:      cols,
		ConflictKeys: []string{"source", "company_name"},
	}, [][]any{{"growjo", "A&B", "AandB"}, {"growjo", "Acme", "Acme Inc"}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestBulkUpsert_CopyError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_stage_match_cache"}, []string{"source"}).WillReturnError(errors.New("copy failed"))
	mock.ExpectRollback()

	_, err = BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "match_cache",
		Columns:      []string{"source"},
		ConflictKeys: []string{"source"},
	}, [][]any{{"growjo"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "copy into staging")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertSQL(t *testing.T) {
	cfg := UpsertConfig{
		Table:        "public.match_cache",
		Columns:      []string{"source", "company_name", "matched_name"},
		ConflictKeys: []string{"source", "company_name"},
	}
	assert.Equal(t,
		`INSERT INTO "public"."match_cache" ("source", "company_name", "matched_name") SELECT "source", "company_name", "matched_name" FROM "_stage_public_match_cache" ON CONFLICT ("source", "company_name") DO UPDATE SET "matched_name" = EXCLUDED."matched_name"`,
		upsertSQL(cfg, stagingTable(cfg.Table)))

	cfg.SkipExisting = true
	assert.Contains(t, upsertSQL(cfg, "s"), "DO NOTHING")
}

func TestSanitizeTable(t *testing.T) {
	assert.Equal(t, `"leads"`, sanitizeTable("leads"))
	assert.Equal(t, `"public"."leads"`, sanitizeTable("public.leads"))
}

func TestUniqueViolation(t *testing.T) {
	name, ok := UniqueViolation(&pgconn.PgError{Code: "23505", ConstraintName: "leads_phone_key"})
	assert.True(t, ok)
	assert.Equal(t, "leads_phone_key", name)

	_, ok = UniqueViolation(&pgconn.PgError{Code: "23503"})
	assert.False(t, ok)

	_, ok = UniqueViolation(errors.New("boom"))
	assert.False(t, ok)
}
