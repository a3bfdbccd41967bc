package dto

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/spec-kit/account-service/internal/domain"
)

const birthDateLayout = "2006-01-02"

// RegisterRequest payload for new accounts.
type RegisterRequest struct {
	FullName  string `json:"fullName"`
	BirthDate string `json:"birthDate"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// Validate runs boundary validation rules.
func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FullName, validation.Required, validation.Length(2, 100)),
		validation.Field(&r.BirthDate, validation.Required, validation.Date(birthDateLayout).Max(time.Now())),
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 128)),
	)
}

// ParsedBirthDate returns the birth date as a time value. Call after Validate.
func (r RegisterRequest) ParsedBirthDate() (time.Time, error) {
	return time.Parse(birthDateLayout, r.BirthDate)
}

// VerifyOTPRequest payload for code submission.
type VerifyOTPRequest struct {
	UserID  string `json:"userId"`
	OTPCode string `json:"otpCode"`
}

// Validate runs boundary validation rules.
func (r VerifyOTPRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.UserID, validation.Required, is.UUID),
		validation.Field(&r.OTPCode, validation.Required, validation.Length(6, 6), is.Digit),
	)
}

// LoginRequest payload for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate runs boundary validation rules.
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

// RefreshTokenRequest payload for refresh and logout.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Validate runs boundary validation rules.
func (r RefreshTokenRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.RefreshToken, validation.Required),
	)
}

// ResendOTPRequest payload.
type ResendOTPRequest struct {
	UserID string `json:"userId"`
}

// Validate runs boundary validation rules.
func (r ResendOTPRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.UserID, validation.Required, is.UUID),
	)
}

// RegisterResponse acknowledges a registration without leaking sensitive data.
type RegisterResponse struct {
	UserID  string `json:"userId"`
	Message string `json:"message"`
}

// AuthResponse bundles a user with a fresh token pair.
type AuthResponse struct {
	User   UserResponse     `json:"user"`
	Tokens domain.TokenPair `json:"tokens"`
}
