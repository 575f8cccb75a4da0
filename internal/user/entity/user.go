package entity

import "time"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents an account row in the `users` table.
// PasswordHash never leaves the service layer.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"fullName"`
	DateOfBirth  time.Time  `db:"date_of_birth" json:"dateOfBirth"`
	IsActive     bool       `db:"is_active" json:"isActive"`
	Role         string     `db:"role" json:"role"`
	LastLogin    *time.Time `db:"last_login" json:"lastLogin,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updatedAt"`
}

// Profile is the client-facing projection of a user.
type Profile struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	FullName    string     `json:"fullName"`
	DateOfBirth string     `json:"dateOfBirth"`
	Role        string     `json:"role"`
	LastLogin   *time.Time `json:"lastLogin,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// Summary is what login returns alongside the token.
type Summary struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

func (u *User) Profile() Profile {
	return Profile{
		ID:          u.ID,
		Email:       u.Email,
		FullName:    u.FullName,
		DateOfBirth: u.DateOfBirth.Format(time.DateOnly),
		Role:        u.Role,
		LastLogin:   u.LastLogin,
		CreatedAt:   u.CreatedAt,
	}
}

func (u *User) Summary() Summary {
	return Summary{ID: u.ID, FullName: u.FullName, Email: u.Email}
}
