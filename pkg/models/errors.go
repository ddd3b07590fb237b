package models

import (
	"errors"
	"fmt"
)

// ErrNoBaseline is returned when the original page could not be captured,
// leaving nothing to score against.
var ErrNoBaseline = errors.New("original page capture failed: no baseline")

// StageError carries the iteration and stage an error happened in.
type StageError struct {
	Stage     string
	Iteration int
	Retryable bool
	Err       error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s (iteration %d): %v", e.Stage, e.Iteration, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// CaptureError is a navigation, timeout or malformed-fingerprint failure.
type CaptureError struct{ StageError }

// GenerationError is a malformed, truncated or failed code generation.
type GenerationError struct {
	StageError
	// Truncated is set when the model stopped at its output limit.
	Truncated bool
}

// HealthCheckError is a build, lint or serve failure of the generated project.
type HealthCheckError struct {
	StageError
	// Problems are the individual error lines reported by the checks.
	Problems []string
}

// NewCaptureError wraps err as a retryable capture failure.
func NewCaptureError(err error) *CaptureError {
	return &CaptureError{StageError{Stage: "capture", Retryable: true, Err: err}}
}

// NewGenerationError wraps err as a generation failure.
func NewGenerationError(err error, retryable bool) *GenerationError {
	return &GenerationError{StageError: StageError{Stage: "generate", Retryable: retryable, Err: err}}
}

// NewHealthCheckError builds a health-check failure from problem lines.
func NewHealthCheckError(problems []string, err error) *HealthCheckError {
	if err == nil {
		err = fmt.Errorf("%d problem(s)", len(problems))
	}
	return &HealthCheckError{
		StageError: StageError{Stage: "health_check", Retryable: true, Err: err},
		Problems:   problems,
	}
}

// IsRetryable reports whether err carries a retryable stage error.
func IsRetryable(err error) bool {
	var se *StageError
	if errors.As(err, &se) {
		return se.Retryable
	}
	var ce *CaptureError
	if errors.As(err, &ce) {
		return ce.Retryable
	}
	var ge *GenerationError
	if errors.As(err, &ge) {
		return ge.Retryable
	}
	var he *HealthCheckError
	if errors.As(err, &he) {
		return he.Retryable
	}
	return false
}
