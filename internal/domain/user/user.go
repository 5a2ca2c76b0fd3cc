// Package user provides the caller identity resolved by authentication.
package user

import "time"

// User is the resolved caller of a request.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// APIKey is a stored credential. The plaintext key is shown once at
// creation; only the bcrypt hash persists.
type APIKey struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Prefix     string    `json:"prefix"`
	Hash       string    `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
	LastUsedAt time.Time `json:"last_used_at,omitempty"`
}
