// Package errdefs defines the error taxonomy shared by every stage of plan
// evaluation.
//
// Each failure is an *Error carrying a Kind (one of the sentinel errors below)
// and the offending field or reference. Callers match kinds with errors.Is:
//
//	if errors.Is(err, errdefs.ErrMissingArtifact) { ... }
//
// None of these errors are retried by the evaluator. Messages never contain
// secret values, only aliases.
package errdefs

import (
	"errors"
	"fmt"
)

// Sentinel error kinds.
var (
	ErrMalformedConfig          = errors.New("MalformedConfig")
	ErrInvalidRange             = errors.New("InvalidRange")
	ErrMissingArtifact          = errors.New("MissingArtifact")
	ErrEmptyArtifact            = errors.New("EmptyArtifact")
	ErrUnresolvedCoordinate     = errors.New("UnresolvedCoordinate")
	ErrDependencyConflict       = errors.New("DependencyConflict")
	ErrUnknownVariant           = errors.New("UnknownVariant")
	ErrUnresolvedSigningProfile = errors.New("UnresolvedSigningProfile")
)

var kinds = []error{
	ErrMalformedConfig,
	ErrInvalidRange,
	ErrMissingArtifact,
	ErrEmptyArtifact,
	ErrUnresolvedCoordinate,
	ErrDependencyConflict,
	ErrUnknownVariant,
	ErrUnresolvedSigningProfile,
}

// Error is a classified evaluation failure.
type Error struct {
	// Kind is one of the sentinel errors in this package.
	Kind error

	// Field names the offending config field or dependency reference.
	Field string

	// Msg is a human-readable description.
	Msg string

	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	s := e.Kind.Error()
	if e.Field != "" {
		s += ": " + e.Field
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// New returns an *Error of the given kind.
func New(kind error, field, format string, args ...any) *Error {
	return &Error{Kind: kind, Field: field, Msg: fmt.Sprintf(format, args...)}
}

// Wrap returns an *Error of the given kind wrapping cause.
func Wrap(kind error, field string, cause error) *Error {
	return &Error{Kind: kind, Field: field, Err: cause}
}

// KindOf returns the sentinel kind of err, or nil if err is not classified.
func KindOf(err error) error {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// Exit codes returned by the command line harness.
const (
	ExitOK         = 0
	ExitFailure    = 1
	ExitConfig     = 2
	ExitResolution = 3
	ExitSigning    = 4
)

// ExitCode maps an error to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	switch KindOf(err) {
	case ErrMalformedConfig, ErrInvalidRange, ErrUnknownVariant:
		return ExitConfig
	case ErrMissingArtifact, ErrEmptyArtifact, ErrUnresolvedCoordinate, ErrDependencyConflict:
		return ExitResolution
	case ErrUnresolvedSigningProfile:
		return ExitSigning
	default:
		return ExitFailure
	}
}
