package apperrors

import (
	"errors"
	"fmt"
	"strings"
)

// Common errors
var (
	// Resource errors
	ErrResourceNotFound = errors.New("resource not found")
	ErrConflict         = errors.New("conflict")

	// Authentication errors
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("invalid token")

	// Authorization errors
	ErrPermissionDenied = errors.New("permission denied")

	// Validation errors
	ErrValidationFailed = errors.New("validation failed")
	ErrBadRequest       = errors.New("bad request")
)

// Exchange workflow errors. All of them are recoverable by the caller.
var (
	ErrInvalidTransition     = errors.New("invalid status transition")
	ErrDuplicateInterest     = errors.New("an active match already exists for this post and user")
	ErrSelfInterestForbidden = errors.New("users cannot express interest in their own post")
	ErrPostNotOpen           = errors.New("post is not open")
	ErrQuantityExceeded      = errors.New("requested quantity exceeds available quantity")
)

// Messaging errors
var (
	ErrNotParticipant = errors.New("user is not a participant in this thread")
)

// Membership errors
var (
	ErrNotMember    = errors.New("user is not an active member of this organization")
	ErrNotSuspended = errors.New("member is not suspended")
)

// ErrConsistency marks a store failure in the middle of a transactional cascade.
// The transaction has been rolled back; no partial state was written.
var ErrConsistency = errors.New("transaction rolled back")

// NewResourceNotFoundError creates a new custom error for resource not found with a message
func NewResourceNotFoundError(message string) error {
	return &CustomError{
		Err:     ErrResourceNotFound,
		Message: message,
	}
}

// NewConflictError creates a new custom error for conflict situations with a message
func NewConflictError(message string) error {
	return &CustomError{
		Err:     ErrConflict,
		Message: message,
	}
}

// NewForbiddenError creates a new custom error for permission denied with a message
func NewForbiddenError(message string) error {
	return &CustomError{
		Err:     ErrPermissionDenied,
		Message: message,
	}
}

// NewBadRequestError creates a new custom error for bad request with a message
func NewBadRequestError(message string) error {
	return &CustomError{
		Err:     ErrBadRequest,
		Message: message,
	}
}

// NewValidationError creates a validation error naming the offending field
func NewValidationError(field, message string) error {
	return (&CustomError{
		Err:     ErrValidationFailed,
		Message: message,
	}).WithDetails(map[string]interface{}{"field": field})
}

// NewConsistencyError wraps a store failure raised inside a cascade.
func NewConsistencyError(op string, cause error) error {
	return &CustomError{
		Err:     ErrConsistency,
		Message: fmt.Sprintf("%s: %s: %v", op, ErrConsistency.Error(), cause),
		Details: map[string]interface{}{"operation": op},
	}
}

// Is returns whether target matches any of the errors in errList
func Is(err, target error, errList ...error) bool {
	if errors.Is(err, target) {
		return true
	}

	for _, e := range errList {
		if errors.Is(err, e) {
			return true
		}
	}

	return false
}

// IsDomain reports whether err is a caller-recoverable workflow error that must
// cross a transaction boundary unchanged.
func IsDomain(err error) bool {
	return Is(err, ErrResourceNotFound,
		ErrInvalidTransition,
		ErrDuplicateInterest,
		ErrSelfInterestForbidden,
		ErrPostNotOpen,
		ErrQuantityExceeded,
		ErrNotParticipant,
		ErrNotMember,
		ErrNotSuspended,
		ErrValidationFailed,
		ErrPermissionDenied,
		ErrConflict,
		ErrBadRequest,
	)
}

// CustomError represents application-specific errors with additional context
type CustomError struct {
	Err     error
	Message string
	Code    string
	Details map[string]interface{}
}

// Error implements error interface
func (e *CustomError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "unknown error"
}

// Unwrap implements errors.Unwrap interface
func (e *CustomError) Unwrap() error {
	return e.Err
}

// NewCustomError creates a CustomError with underlying error
func NewCustomError(err error, message string) *CustomError {
	return &CustomError{
		Err:     err,
		Message: message,
	}
}

// WithDetails adds context details to the error
func (e *CustomError) WithDetails(details map[string]interface{}) *CustomError {
	e.Details = details
	return e
}

// WithCode adds an error code
func (e *CustomError) WithCode(code string) *CustomError {
	e.Code = code
	return e
}

// TransitionError names the rejected status change and the statuses that were
// reachable from the current one.
type TransitionError struct {
	Entity  string
	From    string
	To      string
	Allowed []string
}

// Error implements error interface
func (e *TransitionError) Error() string {
	allowed := "none"
	if len(e.Allowed) > 0 {
		allowed = strings.Join(e.Allowed, ", ")
	}
	return fmt.Sprintf("cannot transition %s from '%s' to '%s' (allowed: %s)", e.Entity, e.From, e.To, allowed)
}

// Unwrap implements errors.Unwrap interface
func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}
