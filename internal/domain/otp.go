package domain

import "time"

// OneTimeCode is a numeric email-verification code tied to a user.
// A code is usable only while Verified is false and ExpiresAt is in the
// future; issuing a new code invalidates all older unconsumed ones.
type OneTimeCode struct {
	ID        string
	UserID    string
	Code      string
	ExpiresAt time.Time
	Verified  bool
	CreatedAt time.Time
}

// Expired reports whether the code's validity window has passed.
func (c *OneTimeCode) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}
