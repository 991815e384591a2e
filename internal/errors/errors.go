// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrInsufficientData = errors.New("insufficient data")
	ErrUnknownMarket    = errors.New("unknown market")
	ErrWorkerStopped    = errors.New("worker stopped")
	ErrDatabaseError    = errors.New("database error")
	ErrDataNotFound     = errors.New("data not found")
)

// ValidationError represents a configuration validation error. It is
// the one error category that fails fast, before any computation runs.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidConfig
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// WorkerError represents a failure reported by the indicator worker.
// It terminates a single analysis request; engine state is untouched.
type WorkerError struct {
	RequestID string
	Message   string
}

func (e *WorkerError) Error() string {
	return fmt.Sprintf("worker error [%s]: %s", e.RequestID, e.Message)
}

// NewWorkerError creates a new WorkerError.
func NewWorkerError(requestID, message string) *WorkerError {
	return &WorkerError{RequestID: requestID, Message: message}
}

// Is reports whether target matches err, following wrapped chains.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain matching target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
