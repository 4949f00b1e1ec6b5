// Package errors carries coded errors through the backfill stack so callers
// can branch on failure class without parsing messages.
//
// Codes are grouped by subsystem: general (1-99), validation (100-199),
// cache (200-299), provider (700-799) and engine (800-899). See error_code.go
// for the full set.
//
// Typical use:
//
//	if err := store.Count(ctx, symbol, g); err != nil {
//		return errors.Wrapf(errors.ErrCodeCacheQueryFailed, err, "count failed for %s", symbol)
//	}
//
//	if errors.HasCode(err, errors.ErrCodeInitialLoadFailed) { ... }
package errors

import (
	"errors"
	"fmt"
)

// Error pairs an ErrorCode with a message and an optional cause. It is the
// error type produced everywhere in this module; plain errors from
// dependencies are wrapped at the boundary where they occur.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Cause)
	}

	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped cause to the errors.Is/errors.As chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New returns a coded error with no cause.
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   nil,
	}
}

// Newf returns a coded error with a formatted message and no cause.
func Newf(code ErrorCode, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   nil,
	}
}

// Wrap returns a coded error that keeps cause reachable through Unwrap.
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Wrapf is Wrap with a formatted message.
func Wrapf(code ErrorCode, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// GetCode returns the code of the outermost *Error in err's chain, or
// ErrCodeUnknown when the chain holds none.
func GetCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}

	return ErrCodeUnknown
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	return GetCode(err) == code
}

// Is reports whether any error in err's chain matches target.
// This is a convenience wrapper around the standard errors.Is function.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
// This is a convenience wrapper around the standard errors.As function.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// SchemaMismatchError reports that a cache was written by a build with an
// incompatible candle schema. It keeps both versions so callers can tell the
// user which side is behind.
type SchemaMismatchError struct {
	Build   string // schema version this build writes
	Stored  string // schema version found in the cache
	Message string
}

// NewSchemaMismatchError creates a SchemaMismatchError.
func NewSchemaMismatchError(build, stored, message string) *SchemaMismatchError {
	return &SchemaMismatchError{
		Build:   build,
		Stored:  stored,
		Message: message,
	}
}

// NewSchemaMismatchErrorf creates a SchemaMismatchError with a formatted message.
func NewSchemaMismatchErrorf(build, stored, format string, args ...any) *SchemaMismatchError {
	return &SchemaMismatchError{
		Build:   build,
		Stored:  stored,
		Message: fmt.Sprintf(format, args...),
	}
}

// Error implements the error interface.
func (e *SchemaMismatchError) Error() string {
	return e.Message
}

// IsSchemaMismatchError reports whether err's chain contains a
// SchemaMismatchError.
func IsSchemaMismatchError(err error) bool {
	var mismatchErr *SchemaMismatchError

	return errors.As(err, &mismatchErr)
}
