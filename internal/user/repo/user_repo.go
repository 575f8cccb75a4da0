package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-finance-go/internal/user/entity"
)

// UserRepo provides data access for users table using sqlx.
// Queries use '?' placeholders and are rebound for the active driver.
type UserRepo struct {
	db *sqlx.DB
}

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{db: db} }

const userColumns = `id, email, password_hash, full_name, date_of_birth, is_active, role, last_login, created_at, updated_at`

// EnsureTable creates the users table if not exists (idempotent).
// This is a convenience for early development; prefer migrations in production.
func (r *UserRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS users (
  id VARCHAR(64) PRIMARY KEY,
  email VARCHAR(254) NOT NULL UNIQUE,
  password_hash VARCHAR(255) NOT NULL,
  full_name VARCHAR(100) NOT NULL,
  date_of_birth DATE NOT NULL,
  is_active BOOLEAN NOT NULL DEFAULT TRUE,
  role VARCHAR(32) NOT NULL DEFAULT 'user',
  last_login TIMESTAMP NULL,
  created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// Create inserts a new user row. ID, email and hash must already be set.
func (r *UserRepo) Create(ctx context.Context, u *entity.User) error {
	now := time.Now().UTC().Truncate(time.Second)
	if u.Role == "" {
		u.Role = entity.RoleUser
	}
	u.IsActive = true
	u.CreatedAt, u.UpdatedAt = now, now
	q := r.db.Rebind(`INSERT INTO users (id, email, password_hash, full_name, date_of_birth, is_active, role, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, q, u.ID, u.Email, u.PasswordHash, u.FullName, u.DateOfBirth, u.IsActive, u.Role, u.CreatedAt, u.UpdatedAt)
	return err
}

// GetByEmail returns a user matched by (already normalized) email or sql.ErrNoRows.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	q := r.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE email = ?`)
	var row entity.User
	if err := r.db.GetContext(ctx, &row, q, email); err != nil {
		return nil, err
	}
	return &row, nil
}

// GetByID fetches a full user row or sql.ErrNoRows.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*entity.User, error) {
	q := r.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE id = ?`)
	var row entity.User
	if err := r.db.GetContext(ctx, &row, q, id); err != nil {
		return nil, err
	}
	return &row, nil
}

// EmailExists reports whether a user with this email is registered.
func (r *UserRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	q := r.db.Rebind(`SELECT 1 FROM users WHERE email = ?`)
	var one int
	err := r.db.GetContext(ctx, &one, q, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// RoleOf returns the role of an active user, or sql.ErrNoRows.
func (r *UserRepo) RoleOf(ctx context.Context, id string) (string, error) {
	q := r.db.Rebind(`SELECT role FROM users WHERE id = ? AND is_active = ?`)
	var role string
	if err := r.db.GetContext(ctx, &role, q, id, true); err != nil {
		return "", err
	}
	return role, nil
}

// TouchLastLogin records a successful login.
func (r *UserRepo) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	q := r.db.Rebind(`UPDATE users SET last_login = ?, updated_at = ? WHERE id = ?`)
	at = at.UTC().Truncate(time.Second)
	_, err := r.db.ExecContext(ctx, q, at, at, id)
	return err
}

// UpdatePassword replaces the hash of the user with the given id.
func (r *UserRepo) UpdatePassword(ctx context.Context, id, hash string) error {
	q := r.db.Rebind(`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`)
	_, err := r.db.ExecContext(ctx, q, hash, time.Now().UTC().Truncate(time.Second), id)
	return err
}

// UpdatePasswordByEmail replaces the hash of the user with the given email.
// Returns sql.ErrNoRows when no row matched.
func (r *UserRepo) UpdatePasswordByEmail(ctx context.Context, email, hash string) error {
	q := r.db.Rebind(`UPDATE users SET password_hash = ?, updated_at = ? WHERE email = ?`)
	res, err := r.db.ExecContext(ctx, q, hash, time.Now().UTC().Truncate(time.Second), email)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes the user row. Returns sql.ErrNoRows when nothing matched.
func (r *UserRepo) Delete(ctx context.Context, id string) error {
	q := r.db.Rebind(`DELETE FROM users WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
