// Package apperr defines the error taxonomy shared by the store, the
// consistency manager and the HTTP handlers. Every error a core operation
// returns matches exactly one of these kinds via errors.Is / errors.As;
// no kind is ever downgraded into another on the way to the caller.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound reports that a referenced record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict reports a uniqueness constraint violation.
	ErrConflict = errors.New("conflict")
)

// NotFoundf wraps ErrNotFound with context about the missing record.
func NotFoundf(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrNotFound)...)
}

// Conflictf wraps ErrConflict with context about the violated constraint.
func Conflictf(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrConflict)...)
}

// FieldError describes a single field-level constraint violation.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError reports one or more field-level constraint violations.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation error"
	}
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Field + ": " + f.Message
	}
	return "validation error: " + strings.Join(msgs, "; ")
}

// Add appends a field violation and returns the receiver for chaining.
func (e *ValidationError) Add(field, message string) *ValidationError {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
	return e
}

// OrNil returns nil when no violations were collected.
func (e *ValidationError) OrNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// StoreError wraps an I/O failure from the record store. The cause is kept
// opaque; retry policy belongs to the caller.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// InvariantViolation reports an observed inconsistency in the relation
// graph. It signals a defect or a missed reconciliation, never user error,
// and is never silently auto-corrected.
type InvariantViolation struct {
	Relation string // e.g. "user.vehicles", "vehicle.services"
	Detail   string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("invariant violation on %s: %s", e.Relation, e.Detail)
}

// IsValidation reports whether err is a field-level validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsStore reports whether err originated as a store I/O failure.
func IsStore(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}

// IsInvariantViolation reports whether err is a relation-graph inconsistency.
func IsInvariantViolation(err error) bool {
	var iv *InvariantViolation
	return errors.As(err, &iv)
}
