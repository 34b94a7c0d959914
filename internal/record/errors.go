package record

import (
	"errors"
	"fmt"
)

// Error represents a failure raised by the record engine.
//
// Errors include:
//   - Attribute not found: a read of a name that is neither stored nor a relation
//   - Duplicate bound attribute: a relation projection collides with an existing key
//   - Persistence failure: the store faulted inside a transactional write
//   - Invalid model: a model type or relation is misconfigured
//
// A hook veto is NOT an Error; Save and Delete report it as (false, nil).
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Model is the model type name.
	Model string

	// Field is the attribute or relation involved, if any.
	Field string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes record errors.
type ErrorCode string

const (
	// ErrCodeAttributeNotFound indicates a read of an unknown attribute.
	ErrCodeAttributeNotFound ErrorCode = "ATTRIBUTE_NOT_FOUND"

	// ErrCodeDuplicateBoundAttribute indicates a bound attribute key already exists.
	ErrCodeDuplicateBoundAttribute ErrorCode = "DUPLICATE_BOUND_ATTRIBUTE"

	// ErrCodePersistenceFailure indicates the store failed during a write.
	ErrCodePersistenceFailure ErrorCode = "PERSISTENCE_FAILURE"

	// ErrCodeInvalidModel indicates a configuration problem.
	ErrCodeInvalidModel ErrorCode = "INVALID_MODEL"
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	switch {
	case e.Model != "" && e.Field != "":
		msg += fmt.Sprintf(" (model=%s, field=%s)", e.Model, e.Field)
	case e.Model != "":
		msg += fmt.Sprintf(" (model=%s)", e.Model)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

func hasCode(err error, code ErrorCode) bool {
	var re *Error
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsAttributeNotFound returns true if err is an attribute-not-found error.
// Uses errors.As to handle wrapped errors.
func IsAttributeNotFound(err error) bool {
	return hasCode(err, ErrCodeAttributeNotFound)
}

// IsDuplicateBoundAttribute returns true if err is a bound attribute collision.
func IsDuplicateBoundAttribute(err error) bool {
	return hasCode(err, ErrCodeDuplicateBoundAttribute)
}

// IsPersistenceFailure returns true if err is a persistence failure.
func IsPersistenceFailure(err error) bool {
	return hasCode(err, ErrCodePersistenceFailure)
}

// IsInvalidModel returns true if err is a configuration error.
func IsInvalidModel(err error) bool {
	return hasCode(err, ErrCodeInvalidModel)
}

func newAttributeNotFound(model, field string) *Error {
	return &Error{
		Code:    ErrCodeAttributeNotFound,
		Model:   model,
		Field:   field,
		Message: "property does not exist",
	}
}

func newDuplicateBound(model, field string) *Error {
	return &Error{
		Code:    ErrCodeDuplicateBoundAttribute,
		Model:   model,
		Field:   field,
		Message: "bound attribute already exists",
	}
}

func newPersistenceFailure(model, op string, err error) *Error {
	// Keep the innermost failure when a cascade already wrapped one.
	var re *Error
	if errors.As(err, &re) && re.Code == ErrCodePersistenceFailure {
		return re
	}
	return &Error{
		Code:    ErrCodePersistenceFailure,
		Model:   model,
		Message: op + " failed",
		Err:     err,
	}
}

func newInvalidModel(model, field, message string) *Error {
	return &Error{
		Code:    ErrCodeInvalidModel,
		Model:   model,
		Field:   field,
		Message: message,
	}
}
