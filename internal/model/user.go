package model

import "time"

// User represents an application user record as stored in the `users`
// table.  Users are created at signup and never modified afterwards.
//
// Fields:
//
//	ID           – primary key identifier of the user.
//	Username     – unique login name; the subject of issued tokens.
//	Email        – unique email address.
//	PasswordHash – bcrypt digest of the password.
//	CreatedAt    – timestamp of creation (UTC).
type User struct {
	ID           uint64
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}
