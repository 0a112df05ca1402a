// Package common defines shared constants and sentinel errors used across
// the taskmanager server. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound     = errors.New("not found")
	ErrDuplicateEmail = errors.New("email already registered")

	// Service-level errors (generic/internal flow control).
	ErrorInternal         = errors.New("internal error")
	ErrorUnauthorized     = errors.New("unauthorized")
	ErrServiceUnavailable = errors.New("service unavailable")

	// Validation errors.
	ErrWeakCredential   = errors.New("password must be between 8 and 128 characters")
	ErrInvalidEmail     = errors.New("invalid email address")
	ErrValidation       = errors.New("validation error")
	ErrSelfModification = errors.New("cannot deactivate your own account")

	// Credential errors. Messages stay low-information on purpose: unknown
	// email and wrong password must be indistinguishable.
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountDeactivated = errors.New("account is deactivated")
	ErrUserInactive       = errors.New("user not found or inactive")

	// Access token errors (bad signature, malformed, expired).
	ErrInvalidToken = errors.New("invalid token")

	// Refresh token errors. Unknown, revoked and expired tokens all map here.
	ErrInvalidOrExpired = errors.New("invalid or expired refresh token")
)
