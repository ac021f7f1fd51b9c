package models

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")
	ErrIntegrity      = errors.New("integrity constraint violated")

	// Account state errors
	ErrAccountDisabled = errors.New("account is inactive")
	ErrAccountLocked   = errors.New("account is locked")
)

// ValidationError is malformed input the caller can correct.
type ValidationError struct {
	Field   string
	Reasons []string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + strings.Join(e.Reasons, "; ")
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, strings.Join(e.Reasons, "; "))
}

func (e *ValidationError) Is(target error) bool { return target == ErrBadRequest }

// DuplicateError reports a unique-key collision on Field (username, email, ...).
type DuplicateError struct {
	Field string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s already exists", e.Field)
}

func (e *DuplicateError) Is(target error) bool { return target == ErrConflict }

// NotFoundError names the missing resource kind (user, role, report).
type NotFoundError struct {
	Resource string
	Key      string
}

func (e *NotFoundError) Error() string {
	if e.Key == "" {
		return e.Resource + " not found"
	}
	return fmt.Sprintf("%s %s not found", e.Resource, e.Key)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// AlreadyAssignedError is returned when a (user, role) pair already exists.
type AlreadyAssignedError struct {
	UserID int64
	RoleID string
}

func (e *AlreadyAssignedError) Error() string {
	return fmt.Sprintf("role %s already assigned to user %d", e.RoleID, e.UserID)
}

func (e *AlreadyAssignedError) Is(target error) bool { return target == ErrConflict }

// IntegrityError is a storage constraint violation not otherwise classified.
type IntegrityError struct {
	Constraint string
	Err        error
}

func (e *IntegrityError) Error() string {
	if e.Constraint == "" {
		return ErrIntegrity.Error()
	}
	return fmt.Sprintf("%s: %s", ErrIntegrity.Error(), e.Constraint)
}

func (e *IntegrityError) Unwrap() error { return e.Err }

func (e *IntegrityError) Is(target error) bool { return target == ErrIntegrity }

// AuthFailureReason is the detailed cause of a failed login. It is written to
// the audit log; callers outside the admin surface only see PublicMessage.
type AuthFailureReason string

const (
	ReasonNotFound      AuthFailureReason = "NotFound"
	ReasonLocked        AuthFailureReason = "Locked"
	ReasonInactive      AuthFailureReason = "Inactive"
	ReasonBadCredential AuthFailureReason = "BadCredential"
)

// GenericAuthMessage is the only failure text shown for non-locked failures.
const GenericAuthMessage = "invalid credentials"

// AuthenticationError is a failed login. Error() never reveals whether the
// username exists; only Locked is distinguishable.
type AuthenticationError struct {
	Reason AuthFailureReason
}

func (e *AuthenticationError) Error() string {
	return e.PublicMessage()
}

// PublicMessage is the text safe to return to an unauthenticated caller.
func (e *AuthenticationError) PublicMessage() string {
	if e.Reason == ReasonLocked {
		return ErrAccountLocked.Error()
	}
	return GenericAuthMessage
}

func (e *AuthenticationError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return true
	case ErrAccountLocked:
		return e.Reason == ReasonLocked
	case ErrAccountDisabled:
		return e.Reason == ReasonInactive
	}
	return false
}

// AuthReason extracts the detailed failure reason from err, if any.
func AuthReason(err error) (AuthFailureReason, bool) {
	var authErr *AuthenticationError
	if errors.As(err, &authErr) {
		return authErr.Reason, true
	}
	return "", false
}
