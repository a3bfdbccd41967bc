package util

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
)

// DomainError standardizes application errors. The Code is stable and safe to
// branch on; Message is what the client sees. Err carries the internal cause
// and is logged server-side only.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError("VALIDATION_FAILED", message, http.StatusBadRequest, details)
}

func NewNotFound(resource string) error {
	return NewDomainError("NOT_FOUND", fmt.Sprintf("%s not found", resource), http.StatusNotFound, nil)
}

func NewUnauthorized(message string) error {
	return NewDomainError("UNAUTHORIZED", message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError("FORBIDDEN", message, http.StatusForbidden, nil)
}

func NewConflict(message string) error {
	return NewDomainError("CONFLICT", message, http.StatusConflict, nil)
}

// NewInvalidCredentials is deliberately identical for unknown email and wrong
// password so responses carry no account enumeration signal.
func NewInvalidCredentials() error {
	return NewDomainError("INVALID_CREDENTIALS", "invalid email or password", http.StatusUnauthorized, nil)
}

func NewAccountBlocked() error {
	return NewDomainError("ACCOUNT_BLOCKED", "account is blocked or not verified", http.StatusForbidden, nil)
}

func NewInvalidCode() error {
	return NewDomainError("INVALID_CODE", "invalid OTP code", http.StatusBadRequest, nil)
}

func NewCodeExpired() error {
	return NewDomainError("CODE_EXPIRED", "OTP code has expired", http.StatusBadRequest, nil)
}

func NewInvalidToken() error {
	return NewDomainError("INVALID_TOKEN", "invalid token", http.StatusUnauthorized, nil)
}

func NewTokenExpired() error {
	return NewDomainError("TOKEN_EXPIRED", "token has expired", http.StatusUnauthorized, nil)
}

func NewInvalidRefreshToken() error {
	return NewDomainError("INVALID_REFRESH_TOKEN", "invalid or expired refresh token", http.StatusUnauthorized, nil)
}

func NewAlreadyActive() error {
	return NewDomainError("ALREADY_ACTIVE", "user is already verified", http.StatusBadRequest, nil)
}

func NewAlreadyBlocked() error {
	return NewDomainError("ALREADY_BLOCKED", "user is already blocked", http.StatusBadRequest, nil)
}

func NewRateLimited(message string) error {
	return NewDomainError("RATE_LIMITED", message, http.StatusTooManyRequests, nil)
}

func NewEmailDeliveryError(err error) error {
	return &DomainError{
		Code:       "EMAIL_DELIVERY",
		Message:    "failed to send OTP email",
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError. Unrecognized errors
// become INTERNAL_ERROR with the cause preserved for logging.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, pgx.ErrNoRows) {
		if de, ok := NewNotFound("resource").(*DomainError); ok {
			return de
		}
	}
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func MapError(err error) error {
	return ToDomainError(err)
}
