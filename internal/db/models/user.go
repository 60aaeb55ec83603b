// Package models - user.go defines the read-only User view consumed by the audit and
// notification subsystem. Accounts themselves are owned by the identity service.
package models

import "time"

// User represents a task-board account
type User struct {
	ID        int64     `json:"id" db:"id"`
	Username  string    `json:"username" db:"username"`
	Email     string    `json:"email" db:"email"`
	FullName  *string   `json:"full_name,omitempty" db:"full_name"`
	Role      string    `json:"role" db:"role"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// DisplayName returns the full name when set, otherwise the username
func (u *User) DisplayName() string {
	if u == nil {
		return "Someone"
	}
	if u.FullName != nil && *u.FullName != "" {
		return *u.FullName
	}
	return u.Username
}
