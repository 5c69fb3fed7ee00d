// Package errors provides structured error types for the retouch application.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across CLI, TUI and HTTP API
//   - Machine-readable error codes for programmatic handling
//   - User-friendly error messages
//   - Error wrapping with context preservation
//
// # Error Codes
//
// The codes mirror the editing failure taxonomy:
//   - OVERSIZED_INPUT: an upload exceeded the size limit (recoverable, retry with another file)
//   - DECODE_FAILURE: an image state could not be decoded for painting or download
//   - EFFECT_UNAVAILABLE: the image-processing capability is not ready
//   - CROP_ACTIVE: an action was attempted while the session is in cropping mode
//
// Undo at the first state and redo at the last state are not errors and have
// no code.
//
// # Usage
//
//	err := errors.New(errors.ErrCodeOversizedInput, "file size exceeds %s", limit)
//	if errors.Is(err, errors.ErrCodeOversizedInput) {
//	    // Show inline message, keep current state
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeDecodeFailure, origErr, "decode %s", mime)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput   Code = "INVALID_INPUT"
	ErrCodeOversizedInput Code = "OVERSIZED_INPUT"
	ErrCodeInvalidEffect  Code = "INVALID_EFFECT"
	ErrCodeInvalidCrop    Code = "INVALID_CROP"

	// Image errors
	ErrCodeDecodeFailure Code = "DECODE_FAILURE"
	ErrCodeNoImage       Code = "NO_IMAGE"

	// Capability errors
	ErrCodeEffectUnavailable Code = "EFFECT_UNAVAILABLE"

	// Session state errors
	ErrCodeCropActive      Code = "CROP_ACTIVE"
	ErrCodeCropInactive    Code = "CROP_INACTIVE"
	ErrCodeSessionNotFound Code = "SESSION_NOT_FOUND"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
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

// SizeLimitError carries the numbers behind an OVERSIZED_INPUT failure.
type SizeLimitError struct {
	Size  int64 // Bytes observed (may be limit+1 when the reader was cut short)
	Limit int64 // Maximum accepted bytes
}

// Error implements the error interface.
func (e *SizeLimitError) Error() string {
	if e.Size > 0 {
		return fmt.Sprintf("size %d exceeds limit of %d bytes", e.Size, e.Limit)
	}
	return fmt.Sprintf("size exceeds limit of %d bytes", e.Limit)
}

// Code returns the error code for this error type.
func (e *SizeLimitError) Code() Code {
	return ErrCodeOversizedInput
}
