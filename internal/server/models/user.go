package models

import "time"

// User is an account row. PasswordHash is a bcrypt hash, APIToken is the
// single live session token (empty when logged out or locked).
type User struct {
	ID              int64
	Username        string
	Email           string
	PasswordHash    string
	APIToken        string
	FailedAttempts  int
	LockedUntil     *time.Time
	ResetToken      string
	ResetExpires    *time.Time
	ActivationToken string
	Activated       bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// LockedAt reports whether the account is locked at the given instant.
func (u *User) LockedAt(now time.Time) bool {
	return u.LockedUntil != nil && u.LockedUntil.After(now)
}

// DirectoryEntry is one account as listed by the user directory.
type DirectoryEntry struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Activated bool   `json:"activated"`
}
