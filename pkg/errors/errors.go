// Package errors provides structured error types for poissonfields.
//
// A collage run either produces a finished buffer or fails with exactly one
// terminal error carrying a machine-readable [Code]. Per-asset and
// per-placement problems (decode warnings, degraded placements) share the
// same code space so they can be logged and counted uniformly, but they are
// never returned as the run error.
//
// # Error Codes
//
//   - ACQUISITION_FAILED: the search provider or fetch layer failed for the whole run
//   - INSUFFICIENT_CANDIDATES: probing finished with zero suitable images
//   - DECODE_WARNING: one asset could not be decoded (recovered locally)
//   - PLACEMENT_DEGRADED: retry cap exhausted for one image (recovered locally)
//   - RENDER_FAILED: drawing or encoding the canvas failed
//   - PUBLISH_FAILED: the publisher rejected the finished post
//   - INVALID_INPUT, NETWORK_ERROR, TIMEOUT, NOT_FOUND: supporting codes
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInsufficientCandidates, "no suitable images for %q", term)
//	if errors.Is(err, errors.ErrCodeInsufficientCandidates) {
//	    // pick another term
//	}
//
//	err := errors.Wrap(errors.ErrCodeAcquisition, origErr, "search %q", term)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Run-level failures.
const (
	ErrCodeAcquisition            Code = "ACQUISITION_FAILED"
	ErrCodeInsufficientCandidates Code = "INSUFFICIENT_CANDIDATES"
	ErrCodeRender                 Code = "RENDER_FAILED"
	ErrCodePublish                Code = "PUBLISH_FAILED"
)

// Locally recovered conditions.
const (
	ErrCodeDecodeWarning     Code = "DECODE_WARNING"
	ErrCodePlacementDegraded Code = "PLACEMENT_DEGRADED"
)

// Supporting codes.
const (
	ErrCodeInvalidInput Code = "INVALID_INPUT"
	ErrCodeNetwork      Code = "NETWORK_ERROR"
	ErrCodeTimeout      Code = "TIMEOUT"
	ErrCodeNotFound     Code = "NOT_FOUND"
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
// It unwraps the error chain looking for the outermost *Error.
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

// UserMessage returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// IsFatal reports whether code terminates a run. Decode warnings and
// degraded placements are recovered where they occur.
func IsFatal(code Code) bool {
	switch code {
	case ErrCodeDecodeWarning, ErrCodePlacementDegraded:
		return false
	default:
		return true
	}
}
