// Package shared contains common domain types, errors, and events
// that are used across all domain packages.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrInvalidEntity = errors.New("invalid entity")

	// Validation errors
	ErrValidation    = errors.New("validation error")
	ErrInvalidID     = errors.New("invalid ID")
	ErrInvalidInput  = errors.New("invalid input")
	ErrEmptyValue    = errors.New("value cannot be empty")
	ErrNegativeValue = errors.New("value cannot be negative")

	// State errors
	ErrInvalidState     = errors.New("invalid state")
	ErrAlreadyProcessed = errors.New("already processed")

	// Concurrency errors
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// External service errors
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "achievement", "engine", "catalog"
	Op      string // Operation that failed, e.g., "Advance", "Save"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Engine error taxonomy. Unknown catalog titles have no sentinel: the
// catalog may lag event wiring, so the engine skips them silently and
// direct lookups report ErrDefinitionNotFound.
var (
	ErrInvalidEvent        = NewDomainError("engine", "ApplyEvent", ErrInvalidInput, "event references no valid actor")
	ErrPersistenceConflict = NewDomainError("progress", "Save", ErrConcurrentModification, "concurrent write on progress row")
	ErrEngineUnavailable   = NewDomainError("engine", "ApplyEvent", ErrServiceUnavailable, "progress store unreachable")
)

// Achievement domain errors.
var (
	ErrDefinitionNotFound  = NewDomainError("achievement", "Find", ErrNotFound, "achievement definition not found")
	ErrDefinitionExists    = NewDomainError("achievement", "Create", ErrAlreadyExists, "achievement title already registered")
	ErrInvalidThreshold    = NewDomainError("achievement", "Validate", ErrInvalidInput, "required points must be positive")
	ErrNegativeDelta       = NewDomainError("achievement", "Advance", ErrNegativeValue, "progress delta cannot be negative")
	ErrProgressRowNotFound = NewDomainError("progress", "Save", ErrNotFound, "progress row not found")
)
