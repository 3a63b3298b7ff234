// Package curdling implements a resolution engine and distribution-discovery
// service for a language-ecosystem package manager: it parses requirement
// strings, discovers candidate distributions across configured repositories,
// intersects transitive version constraints, and hands chosen artifacts to
// an external content-addressed index.
package curdling

import (
	"errors"
	"strings"
)

// Error is the curdling error domain type.
//
// Errors coming from curdling components should be able to be inspected as
// ([errors.As]) an *Error at some point in the error chain.
//
// Implementers of curdling components should create an Error at the system
// boundary (parsing a requirement, a registry invariant, a transport
// failure) and intermediate layers should not wrap in another Error except
// to add additional [ErrorKind] information. Use [fmt.Errorf] with a "%w"
// verb in preference to creating a containing Error.
type Error struct {
	Inner   error
	Kind    ErrorKind
	Message string
	Op      string
}

// Assert this implements all the cool features.
var (
	_ error                       = (*Error)(nil)
	_ interface{ Is(error) bool } = (*Error)(nil)
	_ interface{ Unwrap() error } = (*Error)(nil)
)

// Error implements error.
func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(" ")
	}
	b.WriteString("[")
	switch e.Kind {
	case ErrBadRequirement,
		ErrUnknownURL,
		ErrVersionConflict,
		ErrBrokenDependency,
		ErrConnection,
		ErrTooManyRedirects,
		ErrReportable,
		ErrDataSlotInUse,
		ErrUnknownRequirement,
		ErrBadField,
		ErrInternal:
		b.WriteString(string(e.Kind))
	default:
		b.WriteString("???")
	}
	b.WriteString("]: ")
	if e.Message != "" {
		b.WriteString(e.Message)
	}
	if e.Message != "" && e.Inner != nil {
		b.WriteString(": ")
	}
	if e.Op == "" && e.Message == "" {
		b.Reset()
	}
	if e.Inner != nil {
		b.WriteString(e.Inner.Error())
	}
	return b.String()
}

// Is enables [errors.Is].
//
// It compares the error kind. Callers should compare against a declared
// [ErrorKind] over a specific error.
func (e *Error) Is(kind error) bool {
	return errors.Is(e.Kind, kind)
}

// Unwrap enables [errors.Unwrap].
func (e *Error) Unwrap() error {
	return e.Inner
}

// ErrorKind represents the taxonomy of errors this system raises, per the
// error handling design: user input errors, resolution errors, transport
// errors, protocol errors, and invariant violations.
//
// If a caller is unsure which kind applies, ErrInternal should be used.
type ErrorKind string

// Defined error kinds.
var (
	// User input errors: raised at the boundary, never retried.
	ErrBadRequirement = ErrorKind("bad requirement")
	ErrUnknownURL     = ErrorKind("unknown url scheme")

	// Resolution errors: raised by the Maestro, surfaced with full context.
	ErrVersionConflict  = ErrorKind("version conflict")
	ErrBrokenDependency = ErrorKind("broken dependency")

	// Transport errors: abort a single locator attempt; swallowed by the
	// aggregating locator until every source is exhausted.
	ErrConnection       = ErrorKind("connection error")
	ErrTooManyRedirects = ErrorKind("too many redirects")

	// Reportable errors: surfaced to the caller as a final failure
	// (requirement not found, download failed).
	ErrReportable = ErrorKind("reportable")

	// Invariant violations: programming errors, always fatal, never retried.
	ErrDataSlotInUse      = ErrorKind("data slot in use")
	ErrUnknownRequirement = ErrorKind("unknown requirement")
	ErrBadField           = ErrorKind("bad field")

	// ErrInternal is for anything that doesn't fit the above.
	ErrInternal = ErrorKind("internal")
)

// Error implements error.
func (e ErrorKind) Error() string {
	return string(e)
}
