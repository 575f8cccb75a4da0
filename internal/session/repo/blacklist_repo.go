package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

// BlacklistRepo persists digests of revoked session tokens.
type BlacklistRepo struct {
	db *sqlx.DB
}

func NewBlacklistRepo(db *sqlx.DB) *BlacklistRepo {
	return &BlacklistRepo{db: db}
}

// EnsureTable creates the blacklisted_tokens table if it does not exist.
func (r *BlacklistRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS blacklisted_tokens (
  token_hash VARCHAR(128) PRIMARY KEY,
  user_id VARCHAR(64) NOT NULL DEFAULT '',
  expires_at TIMESTAMP NOT NULL,
  created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`
	if _, err := r.db.ExecContext(ctx, ddl); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_blacklisted_tokens_expires ON blacklisted_tokens (expires_at)`)
	return err
}

// Upsert records a revoked token. Revoking the same token again only moves
// its expiry.
func (r *BlacklistRepo) Upsert(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	q := r.db.Rebind(`INSERT INTO blacklisted_tokens (token_hash, user_id, expires_at, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (token_hash) DO UPDATE SET expires_at = excluded.expires_at`)
	now := time.Now().UTC().Truncate(time.Second)
	_, err := r.db.ExecContext(ctx, q, tokenHash, userID, expiresAt.UTC(), now)
	return err
}

func (r *BlacklistRepo) Exists(ctx context.Context, tokenHash string) (bool, error) {
	q := r.db.Rebind(`SELECT 1 FROM blacklisted_tokens WHERE token_hash = ?`)
	var one int
	if err := r.db.GetContext(ctx, &one, q, tokenHash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// DeleteExpired removes rows whose token has expired before the given time
// and returns how many were removed.
func (r *BlacklistRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	q := r.db.Rebind(`DELETE FROM blacklisted_tokens WHERE expires_at < ?`)
	res, err := r.db.ExecContext(ctx, q, before.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
