package domain

import "time"

// RefreshToken is a persisted refresh token row. Rows are deleted on logout
// and replaced atomically on rotation, so presence in the store is the source
// of truth for whether a refresh token is still usable.
type RefreshToken struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// TokenPair bundles the signed access and refresh tokens returned to clients.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}
