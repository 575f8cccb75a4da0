package entity

import "time"

// PasswordReset is the single pending reset of an email address. Only the
// digest of the emailed token is stored.
type PasswordReset struct {
	Email     string    `db:"email"`
	TokenHash string    `db:"token_hash"`
	ExpiresAt time.Time `db:"expires_at"`
	CreatedAt time.Time `db:"created_at"`
}
