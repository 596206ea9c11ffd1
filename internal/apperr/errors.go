// Package apperr classifies the errors the client surfaces to the user.
package apperr

import (
	"errors"
	"fmt"
)

// Code is the class of an application error.
type Code string

const (
	// CodeValidation is bad input caught before any backend call.
	CodeValidation Code = "VALIDATION"
	// CodeBackend is an operation the backend rejected or failed.
	CodeBackend Code = "BACKEND"
	// CodeInconsistency is backend data that contradicts itself, such as an
	// account without a profile. It ends the session.
	CodeInconsistency Code = "INCONSISTENCY"
)

// AppError carries the banner text shown to the user and the underlying cause.
type AppError struct {
	Code    Code
	Message string
	Field   string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

// New creates an error without a cause.
func New(code Code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap attaches a user-facing message to err.
func Wrap(err error, code Code, message string) *AppError {
	return &AppError{Code: code, Message: message, Cause: err}
}

// NewValidationError reports a missing or malformed input field.
func NewValidationError(field, message string) *AppError {
	return &AppError{Code: CodeValidation, Message: message, Field: field}
}

// NewBackendError forwards the backend's own message after prefix, e.g.
// "Authentication failed: invalid credentials".
func NewBackendError(prefix string, err error) *AppError {
	msg := prefix
	if err != nil {
		msg = fmt.Sprintf("%s: %v", prefix, err)
	}
	return Wrap(err, CodeBackend, msg)
}

// NewInconsistencyError reports data the client cannot continue with.
func NewInconsistencyError(message string, err error) *AppError {
	return Wrap(err, CodeInconsistency, message)
}

// As extracts an AppError from err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Is reports whether err carries an AppError with the given code.
func Is(err error, code Code) bool {
	appErr, ok := As(err)
	return ok && appErr.Code == code
}

// Message returns the banner text for err: the AppError message when there is
// one, else err's own text.
func Message(err error) string {
	if err == nil {
		return ""
	}
	if appErr, ok := As(err); ok {
		return appErr.Message
	}
	return err.Error()
}
