package events

import (
	"time"

	"github.com/spec-kit/account-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventUserRegistered EventType = "user_registered"
	EventOTPIssued      EventType = "otp_issued"
	EventUserVerified   EventType = "user_verified"
	EventUserLoggedIn   EventType = "user_logged_in"
	EventUserBlocked    EventType = "user_blocked"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	UserID    string      `json:"user_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// UserRegisteredPayload payload.
type UserRegisteredPayload struct {
	Email string      `json:"email"`
	Role  domain.Role `json:"role"`
}

// OTPIssuedPayload payload. The code itself is never part of the event.
type OTPIssuedPayload struct {
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
	Resend    bool      `json:"resend"`
}

// UserBlockedPayload payload.
type UserBlockedPayload struct {
	BlockedBy string `json:"blocked_by"`
}
