// Package errors provides structured error types for the nodeforge engine.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across CLI and API
//   - Machine-readable error codes for programmatic handling
//   - User-friendly error messages
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Error codes map to the engine's defect taxonomy:
//   - SCHEMA_ERROR: structural JSON-shape failures (fatal, nothing else runs)
//   - RESOLUTION_CONFLICT: name collisions, missing overrides, cyclic extends/include
//   - REFERENCE_ERROR: a graph references an unknown type or interface id
//   - CONNECTION_ERROR: direction/type/arity violations on a single connection
//   - REGISTRY_ERROR: registry contract violations (double-registration, etc.)
//
// # Usage
//
//	err := errors.New(errors.ErrCodeConnection, "interface %q is full", name)
//	if errors.Is(err, errors.ErrCodeConnection) {
//	    // Handle connection error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeSchema, origErr, "decode dataflow %s", path)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different defect categories.
const (
	// Specification and validation defects
	ErrCodeSchema             Code = "SCHEMA_ERROR"
	ErrCodeResolutionConflict Code = "RESOLUTION_CONFLICT"
	ErrCodeReference          Code = "REFERENCE_ERROR"
	ErrCodeConnection         Code = "CONNECTION_ERROR"
	ErrCodeRegistry           Code = "REGISTRY_ERROR"

	// Ambient errors
	ErrCodeInvalidInput Code = "INVALID_INPUT"
	ErrCodeNotFound     Code = "NOT_FOUND"
	ErrCodeInternal     Code = "INTERNAL_ERROR"
	ErrCodeUnsupported  Code = "UNSUPPORTED"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
