package entity

import "time"

// AuditLog records an authentication action for later review.
type AuditLog struct {
	ID        string
	UserID    string
	Email     string
	Action    string // signup, login, login_failed, oauth_login, logout
	IP        string
	UserAgent string
	Metadata  map[string]any
	CreatedAt time.Time
}
