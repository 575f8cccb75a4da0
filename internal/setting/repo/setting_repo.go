package repo

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-finance-go/internal/setting/entity"
)

// Repo stores user settings, one row per user.
type Repo struct {
	db *sqlx.DB
}

func NewRepo(db *sqlx.DB) *Repo {
	return &Repo{db: db}
}

// EnsureTable creates user_settings if missing. Rows go away with their user.
func (r *Repo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS user_settings (
  user_id VARCHAR(64) PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
  notifications BOOLEAN NOT NULL DEFAULT TRUE,
  language VARCHAR(10) NOT NULL DEFAULT 'al',
  currency VARCHAR(10) NOT NULL DEFAULT 'ALL',
  timezone VARCHAR(50) NOT NULL DEFAULT 'Europe/Tirane',
  updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// Get returns the settings row for userID or sql.ErrNoRows.
func (r *Repo) Get(ctx context.Context, userID string) (*entity.Settings, error) {
	q := r.db.Rebind(`SELECT user_id, notifications, language, currency, timezone, updated_at
		FROM user_settings WHERE user_id = ?`)
	var s entity.Settings
	if err := r.db.GetContext(ctx, &s, q, userID); err != nil {
		return nil, err
	}
	return &s, nil
}

// Upsert writes all columns of s.
func (r *Repo) Upsert(ctx context.Context, s *entity.Settings) error {
	q := r.db.Rebind(`INSERT INTO user_settings (user_id, notifications, language, currency, timezone, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			notifications = excluded.notifications,
			language = excluded.language,
			currency = excluded.currency,
			timezone = excluded.timezone,
			updated_at = excluded.updated_at`)
	_, err := r.db.ExecContext(ctx, q, s.UserID, s.Notifications, s.Language, s.Currency, s.Timezone, s.UpdatedAt)
	return err
}

// DeleteForUser removes the settings row of a deleted account. SQLite does not
// enforce the foreign key unless asked to, so the row is removed explicitly.
func (r *Repo) DeleteForUser(ctx context.Context, userID, _ string) error {
	q := r.db.Rebind(`DELETE FROM user_settings WHERE user_id = ?`)
	_, err := r.db.ExecContext(ctx, q, userID)
	return err
}
