// Package fault is the error taxonomy shared by the assistant core.
//
// Deterministic components only ever return ValidationError, UnresolvableTime or
// InvalidDuration. CapabilityFailure and SchemaMismatch come from the
// text-generation boundary and are the only kinds a caller may recover from
// with a deterministic fallback.
package fault

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind string

const (
	ValidationError   Kind = "VALIDATION_ERROR"
	NoActiveDraft     Kind = "NO_ACTIVE_DRAFT"
	InvalidDuration   Kind = "INVALID_DURATION"
	UnresolvableTime  Kind = "UNRESOLVABLE_TIME"
	CapabilityFailure Kind = "CAPABILITY_FAILURE"
	SchemaMismatch    Kind = "SCHEMA_MISMATCH"
)

var sentinels = map[Kind]error{
	ValidationError:   errors.New("validation error"),
	NoActiveDraft:     errors.New("no active draft"),
	InvalidDuration:   errors.New("invalid duration"),
	UnresolvableTime:  errors.New("unresolvable time"),
	CapabilityFailure: errors.New("text generation failed"),
	SchemaMismatch:    errors.New("response does not match schema"),
}

// Sentinel returns the errors.Is target for kind.
func Sentinel(kind Kind) error {
	return sentinels[kind]
}

// Error is a classified failure. Op names the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, fault.Sentinel(kind)) work without wrapping the sentinel.
func (e *Error) Is(target error) bool {
	s, ok := sentinels[e.Kind]
	return ok && s == target
}

// New creates a classified error with a formatted detail message.
func New(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Wrap classifies err. A nil err yields nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the outermost classified error in err's chain,
// or "" when err carries no classification.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Recoverable reports whether err came from the text-generation boundary,
// i.e. a caller with a deterministic substitute may use it.
func Recoverable(err error) bool {
	switch KindOf(err) {
	case CapabilityFailure, SchemaMismatch:
		return true
	default:
		return false
	}
}
