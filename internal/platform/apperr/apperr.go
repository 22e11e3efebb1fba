// Copyright (c) 2026 NoteHub. All rights reserved.

/*
Package apperr defines the centralized error handling framework for NoteHub.

It provides a rich error type that bridges the gap between low-level Domain/Storage
errors and high-level HTTP responses.

Architecture:

  - AppError: A struct containing machine-readable ErrorCode and user-friendly messages.
  - Taxonomy: Dedicated constructors for the authentication error family
    (credentials, second factor, ephemeral tokens, duplicate identities).
  - Mapping: Explicit mapping from AppError to standard HTTP Status Codes.

Every error that leaves the service layer should be wrapped as an [AppError] to ensure
consistent API responses.
*/
package apperr

import (
	"errors"
	"net/http"
)

// # Error Codes

// Machine-readable identifiers for the authentication error taxonomy.
// Clients branch on these, never on message text.
const (
	CodeNotFound             = "NOT_FOUND"
	CodeValidation           = "VALIDATION_ERROR"
	CodeInvalidCredentials   = "INVALID_CREDENTIALS"
	CodeSecondFactorRequired = "SECOND_FACTOR_REQUIRED"
	CodeInvalidSecondFactor  = "INVALID_SECOND_FACTOR"
	CodeTokenExpired         = "TOKEN_EXPIRED"
	CodeTokenAlreadyUsed     = "TOKEN_ALREADY_USED"
	CodeTokenNotFound        = "TOKEN_NOT_FOUND"
	CodeDuplicateIdentity    = "DUPLICATE_IDENTITY"
	CodeStorageUnavailable   = "STORAGE_UNAVAILABLE"
)

// AppError is the canonical error type for the NoteHub API.
//
// It carries an HTTP status code, a machine-readable code, a client-safe
// message, and an optional slice of field-level validation errors.
//
// # Security
//
// The Cause field is for server-side logging only and is never sent to clients
// to avoid leaking internal implementation details (e.g., SQL queries).
type AppError struct {
	// Code is a machine-readable error identifier (e.g. "NOT_FOUND", "CONFLICT").
	Code string `json:"code"`
	// Message is a human-readable description safe to return to the client.
	Message string `json:"error"`
	// HTTPStatus is the HTTP response status code.
	HTTPStatus int `json:"-"`
	// Cause is the underlying error, used for server-side logging only.
	Cause error `json:"-"`
	// Details holds per-field validation errors for VALIDATION_ERROR responses.
	Details []FieldError `json:"details,omitempty"`
}

// FieldError represents a single field-level validation failure.
type FieldError struct {
	// Field is the JSON field name that failed validation.
	Field string `json:"field"`
	// Message is the human-readable description of the failure.
	Message string `json:"message"`
}

// Error implements the error interface. It returns the client-safe message.
func (e *AppError) Error() string { return e.Message }

// Unwrap allows [errors.Is] and [errors.As] to traverse the cause chain.
func (e *AppError) Unwrap() error { return e.Cause }

// # Client Errors (4xx)

// NotFound creates a 404 [AppError] for a named resource.
//
// Example:
//
//	apperr.NotFound("Note") // Returns "Note not found"
func NotFound(resource string) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    resource + " not found",
		HTTPStatus: http.StatusNotFound,
	}
}

// Unauthorized creates a 401 [AppError].
func Unauthorized(msg string) *AppError {
	return &AppError{
		Code:       "UNAUTHORIZED",
		Message:    msg,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// Forbidden creates a 403 [AppError].
func Forbidden(msg string) *AppError {
	return &AppError{
		Code:       "FORBIDDEN",
		Message:    msg,
		HTTPStatus: http.StatusForbidden,
	}
}

// Conflict creates a 409 [AppError] for duplicate or unique-constraint violations.
func Conflict(msg string) *AppError {
	return &AppError{
		Code:       "CONFLICT",
		Message:    msg,
		HTTPStatus: http.StatusConflict,
	}
}

// ValidationError creates a 400 [AppError] with optional per-field details.
func ValidationError(msg string, details ...FieldError) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    msg,
		HTTPStatus: http.StatusBadRequest,
		Details:    details,
	}
}

// # Authentication Taxonomy

// InvalidCredentials creates the deliberately low-information 401 used for
// every failure at the username/password stage.
//
// # Security
//
// Unknown username, wrong password, and suspended account all map here so
// the response cannot be used for username enumeration.
func InvalidCredentials() *AppError {
	return &AppError{
		Code:       CodeInvalidCredentials,
		Message:    "Invalid username or password",
		HTTPStatus: http.StatusUnauthorized,
	}
}

// SecondFactorRequired creates the 401 that tells an enrolled client to
// re-submit its credentials together with a TOTP code.
//
// Distinguishable from [InvalidCredentials] only once the password stage has
// already passed, so it leaks nothing about account existence.
func SecondFactorRequired() *AppError {
	return &AppError{
		Code:       CodeSecondFactorRequired,
		Message:    "Second factor code required",
		HTTPStatus: http.StatusUnauthorized,
	}
}

// InvalidSecondFactor creates the 401 for a wrong or stale TOTP code.
func InvalidSecondFactor() *AppError {
	return &AppError{
		Code:       CodeInvalidSecondFactor,
		Message:    "Invalid second factor code",
		HTTPStatus: http.StatusUnauthorized,
	}
}

// TokenExpired creates the 401 for a bearer or ephemeral token past its expiry.
// The message is identical to the not-found and already-used variants so the
// client cannot infer token state.
func TokenExpired() *AppError {
	return &AppError{
		Code:       CodeTokenExpired,
		Message:    "Invalid or expired token",
		HTTPStatus: http.StatusUnauthorized,
	}
}

// TokenAlreadyUsed creates the 409 for a single-use token that has been consumed.
func TokenAlreadyUsed() *AppError {
	return &AppError{
		Code:       CodeTokenAlreadyUsed,
		Message:    "Invalid or expired token",
		HTTPStatus: http.StatusConflict,
	}
}

// TokenNotFound creates the 400 for an ephemeral token that does not exist.
func TokenNotFound() *AppError {
	return &AppError{
		Code:       CodeTokenNotFound,
		Message:    "Invalid or expired token",
		HTTPStatus: http.StatusBadRequest,
	}
}

// DuplicateIdentity creates the 409 for a username or email that is already
// taken. The storage layer's unique constraint is the final arbiter under
// concurrent registration; this is its client-facing translation.
func DuplicateIdentity(msg string) *AppError {
	return &AppError{
		Code:       CodeDuplicateIdentity,
		Message:    msg,
		HTTPStatus: http.StatusConflict,
	}
}

// # Server Errors (5xx)

// Internal creates a 500 [AppError] wrapping an unexpected server-side error.
// The cause is stored for logging but is never sent to the client.
func Internal(cause error) *AppError {
	return &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    "An unexpected error occurred",
		HTTPStatus: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// StorageUnavailable creates a 503 [AppError] for transient storage failures
// (timeouts, connection loss). Retryable by the caller.
func StorageUnavailable(cause error) *AppError {
	return &AppError{
		Code:       CodeStorageUnavailable,
		Message:    "Storage temporarily unavailable, please retry",
		HTTPStatus: http.StatusServiceUnavailable,
		Cause:      cause,
	}
}

// ServiceUnavailable creates a 503 [AppError] for maintenance mode.
func ServiceUnavailable(msg string) *AppError {
	return &AppError{
		Code:       "SERVICE_UNAVAILABLE",
		Message:    msg,
		HTTPStatus: http.StatusServiceUnavailable,
	}
}

// # Helpers

// IsAppError reports whether err (or any error in its chain) is an [*AppError].
func IsAppError(err error) bool {
	var ae *AppError
	return errors.As(err, &ae)
}

// As extracts the [*AppError] from err's chain. It returns nil if not found.
func As(err error) *AppError {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae
	}
	return nil
}

// HasCode reports whether err carries the given machine-readable code.
func HasCode(err error, code string) bool {
	ae := As(err)
	return ae != nil && ae.Code == code
}
