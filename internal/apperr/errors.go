// Package apperr holds the structured errors the study core hands to its callers.
// Transport details stay attached for diagnostics but callers only ever see these types.
package apperr

import (
	"errors"
	"fmt"
)

// ErrNotFound matches any *NotFoundError through errors.Is.
var ErrNotFound = errors.New("not found")

type NotFoundError struct {
	Collection string
	ID         string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Collection, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

func NotFound(collection, id string) error {
	return &NotFoundError{Collection: collection, ID: id}
}

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// InsufficientQuestionsError is returned when the filtered pool cannot fill an exam.
type InsufficientQuestionsError struct {
	Found     int
	Requested int
}

func (e *InsufficientQuestionsError) Error() string {
	return fmt.Sprintf("insufficient questions: found %d, requested %d", e.Found, e.Requested)
}

// ValidationError describes malformed input. Line is set for import rows (1-based), zero otherwise.
type ValidationError struct {
	Field  string
	Line   int
	Reason string
}

func (e *ValidationError) Error() string {
	switch {
	case e.Line > 0 && e.Field != "":
		return fmt.Sprintf("line %d: %s: %s", e.Line, e.Field, e.Reason)
	case e.Line > 0:
		return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
	case e.Field != "":
		return fmt.Sprintf("%s: %s", e.Field, e.Reason)
	default:
		return e.Reason
	}
}

func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// TransportError wraps a record store I/O failure.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func Transport(op string, err error) error {
	if err == nil {
		return nil
	}
	var te *TransportError
	if errors.As(err, &te) {
		return err
	}
	return &TransportError{Op: op, Err: err}
}

// StateError reports a move the exam state machine does not allow.
type StateError struct {
	Entity string
	ID     string
	Reason string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Entity, e.ID, e.Reason)
}

// Summary is the short user-facing message for err; the full chain is kept by the caller for diagnostics.
func Summary(err error) string {
	var (
		nf *NotFoundError
		iq *InsufficientQuestionsError
		ve *ValidationError
		te *TransportError
		se *StateError
	)
	switch {
	case errors.As(err, &nf):
		return "record not found"
	case errors.As(err, &iq):
		return fmt.Sprintf("only %d questions match the criteria, %d requested", iq.Found, iq.Requested)
	case errors.As(err, &ve):
		return "invalid input"
	case errors.As(err, &se):
		return "operation not allowed in the current state"
	case errors.As(err, &te):
		return "storage unavailable"
	default:
		return "internal error"
	}
}
