package domain

import "time"

// Role is the closed set of authorization roles.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Valid reports whether the role is a known member of the set.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User is the domain model for registered accounts.
//
// EmailVerified and Blocked are independent flags: verification is flipped by
// the OTP flow, Blocked by admin action. An account can act only while
// verified and not blocked.
type User struct {
	ID            string
	FullName      string
	BirthDate     time.Time
	Email         string
	PasswordHash  string
	Role          Role
	EmailVerified bool
	Blocked       bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Active reports whether the account may authenticate.
func (u *User) Active() bool {
	return u.EmailVerified && !u.Blocked
}
