package entity

import "time"

const (
	DefaultLanguage = "al"
	DefaultCurrency = "ALL"
	DefaultTimezone = "Europe/Tirane"
)

// Settings is the per-user preferences row.
type Settings struct {
	UserID        string    `db:"user_id" json:"-"`
	Notifications bool      `db:"notifications" json:"notifications"`
	Language      string    `db:"language" json:"language"`
	Currency      string    `db:"currency" json:"currency"`
	Timezone      string    `db:"timezone" json:"timezone"`
	UpdatedAt     time.Time `db:"updated_at" json:"updatedAt"`
}

// Defaults returns the settings a user has before saving any.
func Defaults(userID string) *Settings {
	return &Settings{
		UserID:        userID,
		Notifications: true,
		Language:      DefaultLanguage,
		Currency:      DefaultCurrency,
		Timezone:      DefaultTimezone,
	}
}

// Patch carries a partial update; nil fields are left unchanged.
type Patch struct {
	Notifications *bool   `json:"notifications"`
	Language      *string `json:"language"`
	Currency      *string `json:"currency"`
	Timezone      *string `json:"timezone"`
}

// Apply copies the set fields of p onto s.
func (p Patch) Apply(s *Settings) {
	if p.Notifications != nil {
		s.Notifications = *p.Notifications
	}
	if p.Language != nil {
		s.Language = *p.Language
	}
	if p.Currency != nil {
		s.Currency = *p.Currency
	}
	if p.Timezone != nil {
		s.Timezone = *p.Timezone
	}
}
