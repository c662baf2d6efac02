package db

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })
	return mock
}

func TestBulkUpsert_EmptyRows(t *testing.T) {
	mock := newMockPool(t)

	n, err := BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "archives",
		Columns:      []string{"id", "title"},
		ConflictKeys: []string{"id"},
	}, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_MissingConfig(t *testing.T) {
	mock := newMockPool(t)
	rows := [][]any{{"a1", "Title"}}

	_, err := BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "archives",
		ConflictKeys: []string{"id"},
	}, rows)
	assert.Error(t, err, "columns are required")

	_, err = BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:   "archives",
		Columns: []string{"id", "title"},
	}, rows)
	assert.Error(t, err, "conflict keys are required")
}

func TestBulkUpsert_TempTableFlow(t *testing.T) {
	mock := newMockPool(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_archives"`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_archives"}, []string{"id", "title"}).
		WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "archives" .* ON CONFLICT \("id"\) DO UPDATE SET "title" = EXCLUDED\."title"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()
	mock.ExpectRollback()

	n, err := BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "archives",
		Columns:      []string{"id", "title"},
		ConflictKeys: []string{"id"},
	}, [][]any{
		{"a1", "Batik sampler"},
		{"a2", "Songket weave"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_CopyFailureRollsBack(t *testing.T) {
	mock := newMockPool(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_archives"}, []string{"id", "title"}).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	_, err := BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "archives",
		Columns:      []string{"id", "title"},
		ConflictKeys: []string{"id"},
	}, [][]any{{"a1", "Batik"}})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSanitizeTable(t *testing.T) {
	assert.Equal(t, `"archives"`, sanitizeTable("archives"))
	assert.Equal(t, `"public"."archives"`, sanitizeTable("public.archives"))
}

func TestQuoteAndJoin(t *testing.T) {
	assert.Equal(t, `"id", "title"`, quoteAndJoin([]string{"id", "title"}))
}
