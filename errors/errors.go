// Package errors provides the typed error taxonomy shared by the path parser,
// the reconstruction planner and compiled setters.
package errors

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
)

// AsType is a generic error type assertion over the error chain.
// Returns the error as type T and true if the chain contains a T.
func AsType[T error](err error) (T, bool) {
	var target T
	if errors.As(err, &target) {
		return target, true
	}
	return target, false
}

// Must panics if err is not nil, otherwise returns value.
func Must[T any](value T, err error) T {
	if err != nil {
		panic(err)
	}
	return value
}

// Code identifies a failure category.
type Code string

const (
	// Compile-time failures
	CodePathNotSupported     Code = "PATH_NOT_SUPPORTED"
	CodeNoReconstructionPath Code = "NO_RECONSTRUCTION_PATH"
	CodeAmbiguousConstructor Code = "AMBIGUOUS_CONSTRUCTOR"
	CodeTypeMismatch         Code = "TYPE_MISMATCH"
	CodeInvalidRegistration  Code = "INVALID_REGISTRATION"

	// Invocation-time failures
	CodeIndexOutOfRange      Code = "INDEX_OUT_OF_RANGE"
	CodeReconstructionFailed Code = "RECONSTRUCTION_FAILED"
)

// Sentinels for errors.Is matching. Any *Error with the same code matches.
var (
	ErrPathNotSupported     = &Error{Code: CodePathNotSupported}
	ErrNoReconstructionPath = &Error{Code: CodeNoReconstructionPath}
	ErrAmbiguousConstructor = &Error{Code: CodeAmbiguousConstructor}
	ErrTypeMismatch         = &Error{Code: CodeTypeMismatch}
	ErrInvalidRegistration  = &Error{Code: CodeInvalidRegistration}
	ErrIndexOutOfRange      = &Error{Code: CodeIndexOutOfRange}
	ErrReconstructionFailed = &Error{Code: CodeReconstructionFailed}
)

// Error is the single error type produced by this module.
type Error struct {
	Code    Code           `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches any *Error carrying the same code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WithCause sets the underlying cause.
func (e *Error) WithCause(cause error) *Error {
	e.cause = cause
	return e
}

// WithDetail adds a detail to the error.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// Detail returns a single detail value.
func (e *Error) Detail(key string) (any, bool) {
	v, ok := e.Details[key]
	return v, ok
}

// LogValue renders the error as a structured slog group.
func (e *Error) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("code", string(e.Code)),
		slog.String("message", e.Message),
	}
	keys := make([]string, 0, len(e.Details))
	for k := range e.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, e.Details[k]))
	}
	if e.cause != nil {
		attrs = append(attrs, slog.String("cause", e.cause.Error()))
	}
	return slog.GroupValue(attrs...)
}
