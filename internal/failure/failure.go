package failure

import (
	"errors"
	"fmt"
)

// Kind classifies a domain failure so callers can decide how to react
// without string-matching error text.
type Kind int

const (
	// Validation is bad user input, reported verbatim, no mutation.
	Validation Kind = iota + 1
	// InvalidTransition means the entity is not in a state where the
	// requested event is legal.
	InvalidTransition
	// StateConflict is a lost concurrent-resolution race or a
	// double-resolve attempt.
	StateConflict
	// NotFound is an unknown code or name.
	NotFound
	// ExternalService is a parsing or notification transport failure,
	// retried at the pipeline or scheduler boundary.
	ExternalService
	// Integrity is fatal for the operation: rolled back and logged, the
	// process keeps serving other requests.
	Integrity
)

// Failure is a wrapper carrying a failure kind and a user-safe message.
type Failure struct {
	Kind    Kind
	Message string
	cause   error
}

func (f *Failure) Error() string {
	if f.cause != nil {
		return fmt.Sprintf("%s: %v", f.Message, f.cause)
	}
	return f.Message
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (f *Failure) Unwrap() error {
	return f.cause
}

// UserMessage returns the message safe to show to an operator. Internal
// diagnostics stay in the cause and only reach the logs.
func (f *Failure) UserMessage() string {
	return f.Message
}

// Validationf returns a Validation failure with a formatted message.
func Validationf(format string, args ...interface{}) error {
	return &Failure{Kind: Validation, Message: fmt.Sprintf(format, args...)}
}

// InvalidTransitionf returns an InvalidTransition failure.
func InvalidTransitionf(format string, args ...interface{}) error {
	return &Failure{Kind: InvalidTransition, Message: fmt.Sprintf(format, args...)}
}

// StateConflictf returns a StateConflict failure.
func StateConflictf(format string, args ...interface{}) error {
	return &Failure{Kind: StateConflict, Message: fmt.Sprintf(format, args...)}
}

// NotFoundf returns a NotFound failure.
func NotFoundf(format string, args ...interface{}) error {
	return &Failure{Kind: NotFound, Message: fmt.Sprintf(format, args...)}
}

// ExternalServicef wraps an external-collaborator error with a user-safe message.
func ExternalServicef(cause error, format string, args ...interface{}) error {
	return &Failure{Kind: ExternalService, Message: fmt.Sprintf(format, args...), cause: cause}
}

// Integrityf wraps a fatal storage error with a user-safe message.
func Integrityf(cause error, format string, args ...interface{}) error {
	return &Failure{Kind: Integrity, Message: fmt.Sprintf(format, args...), cause: cause}
}

// KindOf returns the failure kind of err, or 0 when err is not a Failure.
func KindOf(err error) Kind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return 0
}

// IsKind reports whether err is a Failure of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// IsNotFound reports whether err is a NotFound failure.
func IsNotFound(err error) bool { return IsKind(err, NotFound) }

// IsStateConflict reports whether err is a StateConflict failure.
func IsStateConflict(err error) bool { return IsKind(err, StateConflict) }

// IsInvalidTransition reports whether err is an InvalidTransition failure.
func IsInvalidTransition(err error) bool { return IsKind(err, InvalidTransition) }

// IsValidation reports whether err is a Validation failure.
func IsValidation(err error) bool { return IsKind(err, Validation) }
