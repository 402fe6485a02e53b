package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents the categories of failures raised by the template engine
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	ErrorTypeValidation
	ErrorTypeNotFound
	ErrorTypeRender
	ErrorTypePersistence
	ErrorTypeConflict
)

// String returns a string representation of the ErrorType
func (et ErrorType) String() string {
	switch et {
	case ErrorTypeValidation:
		return "VALIDATION"
	case ErrorTypeNotFound:
		return "NOT_FOUND"
	case ErrorTypeRender:
		return "RENDER"
	case ErrorTypePersistence:
		return "PERSISTENCE"
	case ErrorTypeConflict:
		return "CONFLICT"
	default:
		return "UNKNOWN"
	}
}

// IsRecoverable reports whether the caller can retry or degrade gracefully.
// Persistence failures keep local state and may be retried; a missing
// source is recovered by the fill fallback.
func (et ErrorType) IsRecoverable() bool {
	switch et {
	case ErrorTypePersistence, ErrorTypeNotFound:
		return true
	default:
		return false
	}
}

// TemplateError is the typed error crossing component boundaries
type TemplateError struct {
	Type    ErrorType `json:"type"`
	Op      string    `json:"op,omitempty"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

// Error implements the error interface
func (e *TemplateError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Type, e.Message)
	if e.Op != "" {
		msg = fmt.Sprintf("[%s] %s: %s", e.Type, e.Op, e.Message)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the underlying cause
func (e *TemplateError) Unwrap() error {
	return e.Err
}

// New creates a TemplateError without an underlying cause
func New(errorType ErrorType, op, message string) *TemplateError {
	return &TemplateError{Type: errorType, Op: op, Message: message}
}

// Wrap wraps err as a TemplateError of the given type
func Wrap(errorType ErrorType, op string, err error) *TemplateError {
	if err == nil {
		return nil
	}
	return &TemplateError{Type: errorType, Op: op, Message: "operation failed", Err: err}
}

// Validation creates a validation error
func Validation(op, format string, args ...any) *TemplateError {
	return New(ErrorTypeValidation, op, fmt.Sprintf(format, args...))
}

// NotFound creates a not-found error
func NotFound(op, format string, args ...any) *TemplateError {
	return New(ErrorTypeNotFound, op, fmt.Sprintf(format, args...))
}

// Render wraps a layout or pagination failure
func Render(op string, err error) *TemplateError {
	return Wrap(ErrorTypeRender, op, err)
}

// Persistence wraps a storage or transport failure
func Persistence(op string, err error) *TemplateError {
	return Wrap(ErrorTypePersistence, op, err)
}

// TypeOf returns the ErrorType of err, or ErrorTypeUnknown
func TypeOf(err error) ErrorType {
	var te *TemplateError
	if stderrors.As(err, &te) {
		return te.Type
	}
	return ErrorTypeUnknown
}

// IsValidation reports whether err is a validation error
func IsValidation(err error) bool { return TypeOf(err) == ErrorTypeValidation }

// IsNotFound reports whether err is a not-found error
func IsNotFound(err error) bool { return TypeOf(err) == ErrorTypeNotFound }

// IsRender reports whether err is a render error
func IsRender(err error) bool { return TypeOf(err) == ErrorTypeRender }

// IsPersistence reports whether err is a persistence error
func IsPersistence(err error) bool { return TypeOf(err) == ErrorTypePersistence }
