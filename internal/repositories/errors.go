package repositories

import (
	"errors"
	"fmt"
)

// ErrorCode enumerates repository error causes shared across stores.
type ErrorCode string

const (
	// ErrorUnknown represents an unspecified persistence failure.
	ErrorUnknown ErrorCode = "unknown"
	// ErrorNotFound indicates the requested record does not exist.
	ErrorNotFound ErrorCode = "not_found"
	// ErrorConflict indicates an optimistic-concurrency version mismatch.
	ErrorConflict ErrorCode = "conflict"
	// ErrorUnavailable indicates the backing store cannot be reached.
	ErrorUnavailable ErrorCode = "unavailable"
)

// Error wraps persistence failures with machine readable codes services map
// onto their own sentinels.
type Error struct {
	Op      string
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap exposes the underlying error, if any.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewError constructs a typed repository error tagged with the failing
// operation.
func NewError(op string, code ErrorCode, message string, err error) *Error {
	if message == "" {
		message = string(code)
	}
	return &Error{Op: op, Code: code, Message: message, Err: err}
}

// CodeOf extracts the error code, defaulting to ErrorUnknown.
func CodeOf(err error) ErrorCode {
	var repoErr *Error
	if errors.As(err, &repoErr) {
		return repoErr.Code
	}
	return ErrorUnknown
}

// IsNotFound reports whether err carries ErrorNotFound.
func IsNotFound(err error) bool { return CodeOf(err) == ErrorNotFound }

// IsConflict reports whether err carries ErrorConflict.
func IsConflict(err error) bool { return CodeOf(err) == ErrorConflict }

// IsUnavailable reports whether err carries ErrorUnavailable.
func IsUnavailable(err error) bool { return CodeOf(err) == ErrorUnavailable }
