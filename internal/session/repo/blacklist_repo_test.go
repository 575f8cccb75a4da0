package repo

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*BlacklistRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewBlacklistRepo(sqlx.NewDb(db, "postgres")), mock
}

func TestUpsert(t *testing.T) {
	r, mock := newRepoWithMock(t)
	exp := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(`^INSERT\s+INTO\s+blacklisted_tokens\s*\(token_hash,\s*user_id,\s*expires_at,\s*created_at\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4\)\s*ON\s+CONFLICT\s*\(token_hash\)\s*DO\s+UPDATE\s+SET\s+expires_at\s*=\s*excluded\.expires_at$`).
		WithArgs("h1", "u1", exp, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, r.Upsert(context.Background(), "h1", "u1", exp))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExists(t *testing.T) {
	r, mock := newRepoWithMock(t)
	mock.ExpectQuery(`^SELECT\s+1\s+FROM\s+blacklisted_tokens\s+WHERE\s+token_hash\s*=\s*\$1$`).
		WithArgs("h1").
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectQuery(`FROM\s+blacklisted_tokens`).
		WithArgs("h2").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`FROM\s+blacklisted_tokens`).
		WithArgs("h3").
		WillReturnError(errors.New("db down"))

	ok, err := r.Exists(context.Background(), "h1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.Exists(context.Background(), "h2")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = r.Exists(context.Background(), "h3")
	require.Error(t, err)
}

func TestDeleteExpired(t *testing.T) {
	r, mock := newRepoWithMock(t)
	before := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(`^DELETE\s+FROM\s+blacklisted_tokens\s+WHERE\s+expires_at\s*<\s*\$1$`).
		WithArgs(before).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := r.DeleteExpired(context.Background(), before)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}
