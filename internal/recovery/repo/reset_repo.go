package repo

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-finance-go/internal/recovery/entity"
)

type ResetRepo struct {
	db *sqlx.DB
}

func NewResetRepo(db *sqlx.DB) *ResetRepo {
	return &ResetRepo{db: db}
}

// EnsureTable creates the password_resets table if it does not exist.
func (r *ResetRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS password_resets (
  email VARCHAR(254) PRIMARY KEY,
  token_hash VARCHAR(128) NOT NULL,
  expires_at TIMESTAMP NOT NULL,
  created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// Upsert stores the reset for an email, replacing any earlier one.
func (r *ResetRepo) Upsert(ctx context.Context, p *entity.PasswordReset) error {
	q := r.db.Rebind(`INSERT INTO password_resets (email, token_hash, expires_at, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (email) DO UPDATE SET token_hash = excluded.token_hash, expires_at = excluded.expires_at, created_at = excluded.created_at`)
	_, err := r.db.ExecContext(ctx, q, p.Email, p.TokenHash, p.ExpiresAt.UTC(), p.CreatedAt.UTC())
	return err
}

// GetByEmail returns the pending reset or sql.ErrNoRows.
func (r *ResetRepo) GetByEmail(ctx context.Context, email string) (*entity.PasswordReset, error) {
	q := r.db.Rebind(`SELECT email, token_hash, expires_at, created_at FROM password_resets WHERE email = ?`)
	var p entity.PasswordReset
	if err := r.db.GetContext(ctx, &p, q, email); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ResetRepo) DeleteByEmail(ctx context.Context, email string) error {
	q := r.db.Rebind(`DELETE FROM password_resets WHERE email = ?`)
	_, err := r.db.ExecContext(ctx, q, email)
	return err
}

// DeleteForUser drops any pending reset of a deleted account.
func (r *ResetRepo) DeleteForUser(ctx context.Context, _, email string) error {
	return r.DeleteByEmail(ctx, email)
}
