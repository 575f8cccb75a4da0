package repo

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-finance-go/internal/setting/entity"
)

func newRepoWithMock(t *testing.T) (*Repo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRepo(sqlx.NewDb(db, "postgres")), mock
}

func TestGet(t *testing.T) {
	r, mock := newRepoWithMock(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`FROM\s+user_settings\s+WHERE\s+user_id\s*=\s*\$1`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "notifications", "language", "currency", "timezone", "updated_at"}).
			AddRow("u1", false, "en", "EUR", "UTC", now))

	s, err := r.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "EUR", s.Currency)
	assert.False(t, s.Notifications)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsert(t *testing.T) {
	r, mock := newRepoWithMock(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+user_settings.*ON\s+CONFLICT\s*\(user_id\)\s*DO\s+UPDATE`).
		WithArgs("u1", true, "al", "ALL", "Europe/Tirane", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	s := entity.Defaults("u1")
	s.UpdatedAt = now
	require.NoError(t, r.Upsert(context.Background(), s))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteForUser(t *testing.T) {
	r, mock := newRepoWithMock(t)
	mock.ExpectExec(`^DELETE\s+FROM\s+user_settings\s+WHERE\s+user_id\s*=\s*\$1$`).
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, r.DeleteForUser(context.Background(), "u1", "a@b.co"))
	require.NoError(t, mock.ExpectationsWereMet())
}
