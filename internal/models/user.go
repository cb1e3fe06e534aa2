package models

import "time"

// User captures application-facing fields for an authenticated identity.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	IsAdmin      bool      `json:"is_admin"`
	CreatedAt    time.Time `json:"created_at"`
}

// Role reports the role state derived from the admin flag.
func (u User) Role() Role {
	return RoleOf(u.IsAdmin)
}

// Public returns a copy of the user with the password hash removed.
func (u User) Public() User {
	u.PasswordHash = ""
	return u
}
