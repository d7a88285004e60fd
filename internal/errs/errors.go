// Package errs defines the error taxonomy for the forecast pipeline.
// Every class is fatal to the run: callers surface the error and produce
// no report artifacts.
package errs

import (
	"errors"
	"fmt"
)

// Sentinel errors for the three failure classes. Use errors.Is against
// these to classify wrapped errors anywhere in the pipeline.
var (
	// ErrInvalidInput marks malformed or insufficient input to a pure
	// transform. Caller's responsibility, never retried.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDataUnavailable marks a market-data fetch failure or an empty
	// provider result.
	ErrDataUnavailable = errors.New("data unavailable")

	// ErrTraining marks a model training or inference failure.
	ErrTraining = errors.New("training failed")
)

// InvalidInputError carries the offending field and the reason a pure
// transform rejected its input.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid input: %s", e.Reason)
	}
	return fmt.Sprintf("invalid input: %s: %s", e.Field, e.Reason)
}

// Is reports membership in the ErrInvalidInput class.
func (e *InvalidInputError) Is(target error) bool {
	return target == ErrInvalidInput
}

// InvalidInput creates an InvalidInputError for the given field.
func InvalidInput(field, reason string) *InvalidInputError {
	return &InvalidInputError{Field: field, Reason: reason}
}

// InvalidInputf creates an InvalidInputError with a formatted reason.
func InvalidInputf(field, format string, args ...interface{}) *InvalidInputError {
	return &InvalidInputError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// DataUnavailableError carries the symbol whose price history could not
// be retrieved and the underlying cause.
type DataUnavailableError struct {
	Symbol string
	Err    error
}

func (e *DataUnavailableError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("data unavailable for %s", e.Symbol)
	}
	return fmt.Sprintf("data unavailable for %s: %v", e.Symbol, e.Err)
}

// Is reports membership in the ErrDataUnavailable class.
func (e *DataUnavailableError) Is(target error) bool {
	return target == ErrDataUnavailable
}

// Unwrap returns the underlying cause.
func (e *DataUnavailableError) Unwrap() error {
	return e.Err
}

// DataUnavailable creates a DataUnavailableError for the given symbol.
func DataUnavailable(symbol string, err error) *DataUnavailableError {
	return &DataUnavailableError{Symbol: symbol, Err: err}
}

// TrainingError carries the pipeline stage at which a model failed and
// the underlying cause.
type TrainingError struct {
	Stage string
	Err   error
}

func (e *TrainingError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("training failed at %s", e.Stage)
	}
	return fmt.Sprintf("training failed at %s: %v", e.Stage, e.Err)
}

// Is reports membership in the ErrTraining class.
func (e *TrainingError) Is(target error) bool {
	return target == ErrTraining
}

// Unwrap returns the underlying cause.
func (e *TrainingError) Unwrap() error {
	return e.Err
}

// Training creates a TrainingError for the given stage.
func Training(stage string, err error) *TrainingError {
	return &TrainingError{Stage: stage, Err: err}
}

// Trainingf creates a TrainingError with a formatted cause.
func Trainingf(stage, format string, args ...interface{}) *TrainingError {
	return &TrainingError{Stage: stage, Err: fmt.Errorf(format, args...)}
}
