package domain

import "time"

type UserId = int64

type Email = string

type User struct {
	Id        UserId
	Username  string
	Email     Email
	PassHash  string
	Admin     bool
	Protected bool
	Polls     int // number of polls authored, maintained by the storage layer

	Activated   bool
	ActivatedAt time.Time

	// Server-side token counterparts. A digest is a bcrypt hash of the
	// plaintext token mailed to the user; empty means no token pending.
	ActivationDigest string
	ResetDigest      string
	ResetCreatedAt   time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Credentials is the login payload. Login accepts either the username or
// the email address in the Login field.
type Credentials struct {
	Login    string
	Password string
}

// ProfileUpdate carries the editable profile fields. Empty password means
// "keep the current one".
type ProfileUpdate struct {
	Username             string
	Email                Email
	Password             string
	PasswordConfirmation string
	Protected            bool
}
