// Package errors defines the structured error taxonomy used throughout
// senv. Every user-facing failure carries a stable code that maps to a
// fixed process exit code; lower layers create narrow errors and upper
// layers only wrap them with additional context.
package errors

import (
	"errors"
	"fmt"
)

// Code identifies a category of user-facing error.
type Code string

const (
	CodeUnreadableFile       Code = "ERR_UNREADABLE_FILE"
	CodeUnsupportedTarget    Code = "ERR_UNSUPPORTED_TARGET"
	CodeInvalidConfiguration Code = "ERR_INVALID_CONFIGURATION"
	CodeNoCompatibleImage    Code = "ERR_NO_COMPATIBLE_IMAGE"
	CodeMissingInclude       Code = "ERR_MISSING_INCLUDE"
	CodeUndefinedVariable    Code = "ERR_UNDEFINED_VARIABLE"
	CodeCyclicInclude        Code = "ERR_CYCLIC_INCLUDE"
	CodeProjectExists        Code = "ERR_PROJECT_EXISTS"
	CodeNoEnvironment        Code = "ERR_NO_ENVIRONMENT"
	CodeInternal             Code = "ERR_INTERNAL"
)

// exitCodes is the fixed Code -> process exit code mapping. The values are
// part of the CLI contract and must not be reordered.
var exitCodes = map[Code]int{
	CodeNoEnvironment:        2,
	CodeUnreadableFile:       3,
	CodeUnsupportedTarget:    4,
	CodeInvalidConfiguration: 5,
	CodeNoCompatibleImage:    6,
	CodeMissingInclude:       7,
	CodeUndefinedVariable:    8,
	CodeCyclicInclude:        9,
	CodeProjectExists:        10,
	CodeInternal:             1,
}

// Error is a structured error with a stable code and an optional cause.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches errors by code so that sentinel-style comparison works across
// wrapping layers.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// New creates an error with the given code and message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an existing error. A nil cause
// returns nil so call sites can wrap unconditionally.
func Wrap(cause error, code Code, format string, args ...any) *Error {
	if cause == nil {
		return nil
	}
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// WithContext re-wraps err with an additional message while preserving its
// original code. Non-structured errors get CodeInternal.
func WithContext(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Code: CodeOf(err), Message: fmt.Sprintf(format, args...), Cause: err}
}

// CodeOf extracts the structured code from an error chain, or CodeInternal
// when none is present.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// HasCode reports whether the error chain carries the given code.
func HasCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// ExitCode maps an error to its process exit code. Nil maps to 0 and
// anything without a structured code maps to 1.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if ec, ok := exitCodes[CodeOf(err)]; ok {
		return ec
	}
	return 1
}
