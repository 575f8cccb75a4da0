package repo

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-finance-go/internal/audit/entity"
)

type AuditRepo struct {
	db *sqlx.DB
}

func NewAuditRepo(db *sqlx.DB) *AuditRepo {
	return &AuditRepo{db: db}
}

// EnsureTable creates the audit_logs table and its indexes if they do not
// already exist. The SQL is valid on both Postgres and SQLite.
func (r *AuditRepo) EnsureTable(ctx context.Context) error {
	const tbl = `
	CREATE TABLE IF NOT EXISTS audit_logs (
		id varchar(32) PRIMARY KEY,
		user_id varchar(64) DEFAULT '',
		action varchar(100) NOT NULL,
		details TEXT DEFAULT '',
		ip_address varchar(45) DEFAULT '',
		user_agent TEXT DEFAULT '',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)
	`
	if _, err := r.db.ExecContext(ctx, tbl); err != nil {
		return err
	}

	const idxUser = `
	CREATE INDEX IF NOT EXISTS idx_audit_logs_user ON audit_logs (user_id);
	`
	if _, err := r.db.ExecContext(ctx, idxUser); err != nil {
		return err
	}

	const idxCreated = `
	CREATE INDEX IF NOT EXISTS idx_audit_logs_created ON audit_logs (created_at);
	`
	if _, err := r.db.ExecContext(ctx, idxCreated); err != nil {
		return err
	}
	return nil
}

func (r *AuditRepo) Insert(ctx context.Context, e *entity.Event) error {
	q := r.db.Rebind(`INSERT INTO audit_logs (id, user_id, action, details, ip_address, user_agent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, q, e.ID, e.UserID, e.Action, e.Details, e.IPAddress, e.UserAgent, e.CreatedAt)
	return err
}

// ListByUser returns the newest events of a user first.
func (r *AuditRepo) ListByUser(ctx context.Context, userID string, limit int) ([]entity.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	q := r.db.Rebind(`SELECT id, user_id, action, details, ip_address, user_agent, created_at
		FROM audit_logs WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`)
	var out []entity.Event
	if err := r.db.SelectContext(ctx, &out, q, userID, limit); err != nil {
		return nil, err
	}
	return out, nil
}
