package entity

import (
	"time"
)

// User is the aggregate root for the identity domain.
// Email is stored case-normalized and is unique across all businesses.
// Password holds a bcrypt hash, never plaintext.
type User struct {
	ID        string
	Email     string
	Username  string
	Name      string
	Business  string
	Password  string
	Provider  string // "local" or the external identity provider name
	CreatedAt time.Time
	UpdatedAt time.Time
}
