// Package dscerr provides the classified error type shared by every layer of
// the configuration engine: the expression evaluator, the manifest loader,
// the resource invoker, and the configurator.
package dscerr

import (
	"errors"
	"fmt"
)

// Class is the taxonomy of error kinds the engine can raise. Unlike a
// retry-oriented classification, these track *where* in the pipeline an
// error originated, which is what the CLI needs to pick an exit code and
// what the configurator needs to decide whether to isolate a failure to a
// single resource or abort the whole run.
type Class string

const (
	// ClassParse covers malformed expressions and malformed JSON/YAML.
	ClassParse Class = "parse"

	// ClassValidation covers schema/parameter/dependsOn/type-name validation
	// failures. Raised while binding parameters, evaluating variables, or
	// planning, they are fatal to the run; raised while evaluating one
	// resource's properties, they are recorded on that resource's result.
	ClassValidation Class = "validation"

	// ClassFunction covers unknown functions, arity mismatches, argument
	// kind mismatches, and function-specific preconditions.
	ClassFunction Class = "function"

	// ClassResource covers manifest-not-found, unsupported schema version,
	// spawn failures, nonzero exit codes, and undecodable stdout.
	ClassResource Class = "resource"

	// ClassIO covers oversized files, path traversal, and decode errors.
	ClassIO Class = "io"

	// ClassNotSupported covers a manifest being asked for an operation it
	// does not declare.
	ClassNotSupported Class = "not_supported"

	// ClassInternal covers invariant violations that indicate a bug in the
	// engine rather than bad input.
	ClassInternal Class = "internal"
)

// Error is the engine-wide classified error. It carries enough identifying
// context (the offending parameter, resource, or function name) to render
// as the one-line diagnostic the spec requires: kind, identifier, reason.
type Error struct {
	Class     Class
	Message   string
	Code      string
	Resource  string
	Function  string
	Parameter string
	Err       error
	Details   map[string]interface{}
}

// Error implements the error interface. Secure values must never be passed
// into Message or Details — callers are responsible for redacting before
// constructing an Error.
func (e *Error) Error() string {
	ident := ""
	switch {
	case e.Resource != "" && e.Function != "":
		ident = fmt.Sprintf(" (resource=%s, function=%s)", e.Resource, e.Function)
	case e.Resource != "":
		ident = fmt.Sprintf(" (resource=%s)", e.Resource)
	case e.Function != "":
		ident = fmt.Sprintf(" (function=%s)", e.Function)
	case e.Parameter != "":
		ident = fmt.Sprintf(" (parameter=%s)", e.Parameter)
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s%s: %s", e.Class, e.Message, ident, e.Err.Error())
	}
	return fmt.Sprintf("[%s] %s%s", e.Class, e.Message, ident)
}

// Unwrap exposes the wrapped error for errors.Is/errors.As chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is implements class+code equality for errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

func newError(class Class, message string, err error) *Error {
	return &Error{Class: class, Message: message, Err: err}
}

// New constructs an Error of the given class.
func New(class Class, message string, err error) *Error { return newError(class, message, err) }

// Parse constructs a ClassParse error.
func Parse(message string, err error) *Error { return newError(ClassParse, message, err) }

// Validation constructs a ClassValidation error.
func Validation(message string, err error) *Error { return newError(ClassValidation, message, err) }

// Function constructs a ClassFunction error.
func Function(message string, err error) *Error { return newError(ClassFunction, message, err) }

// Resource constructs a ClassResource error.
func Resource(message string, err error) *Error { return newError(ClassResource, message, err) }

// IO constructs a ClassIO error.
func IO(message string, err error) *Error { return newError(ClassIO, message, err) }

// NotSupported constructs a ClassNotSupported error.
func NotSupported(message string, err error) *Error { return newError(ClassNotSupported, message, err) }

// Internal constructs a ClassInternal error.
func Internal(message string, err error) *Error { return newError(ClassInternal, message, err) }

// WithResource attaches a resource identifier.
func (e *Error) WithResource(id string) *Error { e.Resource = id; return e }

// WithFunction attaches a function name.
func (e *Error) WithFunction(name string) *Error { e.Function = name; return e }

// WithParameter attaches a parameter name.
func (e *Error) WithParameter(name string) *Error { e.Parameter = name; return e }

// WithCode attaches a programmatic error code.
func (e *Error) WithCode(code string) *Error { e.Code = code; return e }

// WithDetail attaches a key/value detail. Never pass secure-value payloads.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ClassOf returns the Class of err if it is (or wraps) an *Error, and false
// otherwise.
func ClassOf(err error) (Class, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Class, true
	}
	return "", false
}

// IsClass reports whether err is (or wraps) an *Error of the given class.
func IsClass(err error, class Class) bool {
	c, ok := ClassOf(err)
	return ok && c == class
}

// Common error codes, shared across classes for programmatic matching.
const (
	CodeUnknownFunction   = "UNKNOWN_FUNCTION"
	CodeArityMismatch     = "ARITY_MISMATCH"
	CodeArgKindMismatch   = "ARG_KIND_MISMATCH"
	CodeUnknownParameter  = "UNKNOWN_PARAMETER"
	CodeBadDependsOn      = "BAD_DEPENDS_ON"
	CodeMissingDependency = "MISSING_DEPENDENCY"
	CodeTypeMismatch      = "TYPE_MISMATCH"
	CodeDuplicateResource = "DUPLICATE_RESOURCE"
	CodeCycle             = "CYCLE_DETECTED"
	CodeBadTypeName       = "BAD_TYPE_NAME"
	CodeManifestNotFound  = "MANIFEST_NOT_FOUND"
	CodeUnsupportedSchema = "UNSUPPORTED_SCHEMA"
	CodeSpawnFailed       = "SPAWN_FAILED"
	CodeNonZeroExit       = "NONZERO_EXIT"
	CodeBadReturn         = "BAD_RETURN"
	CodeFileTooLarge      = "FILE_TOO_LARGE"
	CodePathTraversal     = "PATH_TRAVERSAL"
	CodeDecodeError       = "DECODE_ERROR"
)
