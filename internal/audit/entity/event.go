package entity

import "time"

const (
	ActionRegister           = "REGISTER"
	ActionLogin              = "LOGIN"
	ActionLogout             = "LOGOUT"
	ActionPasswordChange     = "PASSWORD_CHANGE"
	ActionPasswordResetAsk   = "PASSWORD_RESET_REQUESTED"
	ActionPasswordReset      = "PASSWORD_RESET"
	ActionAccountDeleted     = "ACCOUNT_DELETED"
	ActionSettingsUpdated    = "SETTINGS_UPDATED"
	ActionUnauthorizedAccess = "UNAUTHORIZED_ACCESS"
)

// Event is one row of the audit_logs table.
type Event struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"userId,omitempty"`
	Action    string    `db:"action" json:"action"`
	Details   string    `db:"details" json:"details,omitempty"`
	IPAddress string    `db:"ip_address" json:"ipAddress,omitempty"`
	UserAgent string    `db:"user_agent" json:"userAgent,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}
