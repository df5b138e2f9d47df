package errors

import "fmt"

// New creates a new Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new Error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// PathNotSupported reports an accessor construct outside the member/index grammar.
func PathNotSupported(construct, expr string) *Error {
	return Newf(CodePathNotSupported, "unsupported accessor construct: %s", construct).
		WithDetail("construct", construct).
		WithDetail("expression", expr)
}

// NoReconstructionPath reports a type without a constructor matching its properties.
func NoReconstructionPath(typeName, reason string) *Error {
	return Newf(CodeNoReconstructionPath, "no constructor of %s matches its properties", typeName).
		WithDetail("type", typeName).
		WithDetail("reason", reason)
}

// AmbiguousConstructor reports equally accessible candidate constructors.
func AmbiguousConstructor(typeName string, constructors []string) *Error {
	return Newf(CodeAmbiguousConstructor, "%d equally accessible constructors of %s match its properties", len(constructors), typeName).
		WithDetail("type", typeName).
		WithDetail("constructors", constructors)
}

// TypeMismatch reports a value whose type cannot be assigned where required.
func TypeMismatch(want, got string) *Error {
	return Newf(CodeTypeMismatch, "cannot use %s as %s", got, want).
		WithDetail("want", want).
		WithDetail("got", got)
}

// InvalidRegistration reports a malformed constructor or property registration.
func InvalidRegistration(message string) *Error {
	return New(CodeInvalidRegistration, message)
}

// IndexOutOfRange reports an index step outside the bounds of a sequence.
func IndexOutOfRange(index, length int) *Error {
	return Newf(CodeIndexOutOfRange, "index %d out of range [0:%d]", index, length).
		WithDetail("index", index).
		WithDetail("length", length)
}

// ReconstructionFailed wraps a failure raised while reading properties or
// invoking a constructor.
func ReconstructionFailed(typeName string, cause error) *Error {
	return Newf(CodeReconstructionFailed, "rebuilding %s failed", typeName).
		WithDetail("type", typeName).
		WithCause(cause)
}
