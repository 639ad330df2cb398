package domain

import "fmt"

// Error types for consistent error handling across the engine.

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrExternalService indicates a failure in an external service call.
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}

// ErrTimeout indicates an operation exceeded its deadline.
type ErrTimeout struct {
	Operation string
}

func (e *ErrTimeout) Error() string {
	return fmt.Sprintf("operation timed out: %s", e.Operation)
}

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrExtractionUnavailable indicates the OCR engine is not configured.
type ErrExtractionUnavailable struct {
	Reason string
}

func (e *ErrExtractionUnavailable) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("ocr extraction unavailable: %s", e.Reason)
	}
	return "ocr extraction unavailable"
}

// ErrExtractionFailed indicates the OCR engine failed on a given input
// (corrupt image, fetch failure, or a timed-out recognition).
type ErrExtractionFailed struct {
	ImageRef string
	Err      error
}

func (e *ErrExtractionFailed) Error() string {
	return fmt.Sprintf("ocr extraction failed for %s: %v", e.ImageRef, e.Err)
}

func (e *ErrExtractionFailed) Unwrap() error {
	return e.Err
}
