package repo

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-finance-go/internal/audit/entity"
)

func newRepoWithMock(t *testing.T) (*AuditRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewAuditRepo(sqlx.NewDb(db, "postgres")), mock
}

func TestEnsureTable(t *testing.T) {
	r, mock := newRepoWithMock(t)
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS audit_logs`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE INDEX IF NOT EXISTS idx_audit_logs_user`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE INDEX IF NOT EXISTS idx_audit_logs_created`).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, r.EnsureTable(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsert(t *testing.T) {
	r, mock := newRepoWithMock(t)
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(`^INSERT\s+INTO\s+audit_logs\s*\(id,.*\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5,\s*\$6,\s*\$7\)$`).
		WithArgs("1", "u1", entity.ActionLogin, "", "127.0.0.1", "ua", at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := r.Insert(context.Background(), &entity.Event{
		ID: "1", UserID: "u1", Action: entity.ActionLogin, IPAddress: "127.0.0.1", UserAgent: "ua", CreatedAt: at,
	})
	require.NoError(t, err)
}

func TestListByUser(t *testing.T) {
	r, mock := newRepoWithMock(t)
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "user_id", "action", "details", "ip_address", "user_agent", "created_at"}).
		AddRow("2", "u1", entity.ActionLogout, "", "", "", at).
		AddRow("1", "u1", entity.ActionLogin, "", "", "", at)
	mock.ExpectQuery(`FROM\s+audit_logs\s+WHERE\s+user_id\s*=\s*\$1\s+ORDER\s+BY\s+created_at\s+DESC,\s*id\s+DESC\s+LIMIT\s+\$2$`).
		WithArgs("u1", 50).
		WillReturnRows(rows)

	got, err := r.ListByUser(context.Background(), "u1", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, entity.ActionLogout, got[0].Action)
}
