package auth

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("auth: not found")
	ErrConflict     = errors.New("auth: conflict")
	ErrInvalidInput = errors.New("auth: invalid input")
	ErrUnauthorized = errors.New("auth: unauthorized")
	ErrForbidden    = errors.New("auth: forbidden")
)

// Login failures. Both render as the same generic message to callers.
var (
	ErrBadCredentials  = fmt.Errorf("%w: bad credentials", ErrUnauthorized)
	ErrAccountDisabled = fmt.Errorf("%w: account disabled", ErrUnauthorized)
)

var ErrWeakPassword = fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, MinPasswordLength)

// Relationship and uniqueness conflicts.
var (
	ErrPermissionAlreadyAssigned = fmt.Errorf("%w: permission already assigned to role", ErrConflict)
	ErrPermissionNotAssigned     = fmt.Errorf("%w: permission not assigned to role", ErrConflict)
	ErrRoleAlreadyAssigned       = fmt.Errorf("%w: role already assigned to user", ErrConflict)
	ErrRoleNotAssigned           = fmt.Errorf("%w: role not assigned to user", ErrConflict)

	ErrUserAlreadyExists       = fmt.Errorf("%w: user already exists", ErrConflict)
	ErrRoleAlreadyExists       = fmt.Errorf("%w: role already exists", ErrConflict)
	ErrPermissionAlreadyExists = fmt.Errorf("%w: permission already exists", ErrConflict)

	// ErrStalePassword is returned by ReplacePassword when the stored value
	// no longer matches the expected previous value.
	ErrStalePassword = fmt.Errorf("%w: stored password changed", ErrConflict)
)

var (
	ErrUserNotFound       = fmt.Errorf("%w: user", ErrNotFound)
	ErrRoleNotFound       = fmt.Errorf("%w: role", ErrNotFound)
	ErrPermissionNotFound = fmt.Errorf("%w: permission", ErrNotFound)
	ErrModuleNotFound     = fmt.Errorf("%w: module", ErrNotFound)
)

// NullValueError reports a required value that was not supplied at all.
type NullValueError struct {
	Field string
}

func (e *NullValueError) Error() string {
	return fmt.Sprintf("auth: %s must not be null", e.Field)
}

func (e *NullValueError) Unwrap() error { return ErrInvalidInput }

// ValidationError reports a supplied value that breaks a construction rule.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("auth: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

func nullValue(field string) error { return &NullValueError{Field: field} }

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
