package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrProvider signals a failed upstream call (network, quota, auth).
	ErrProvider = errors.New("provider error")
	// ErrDimensionMismatch signals an embedding whose length disagrees with configuration.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrRetrieval signals a failed vector or graph search.
	ErrRetrieval = errors.New("retrieval error")
	// ErrInvalidArgument signals a violated precondition.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrGeneration signals a text-generation failure after retries.
	ErrGeneration = errors.New("generation error")
)

// DimensionMismatchError wraps ErrDimensionMismatch with the offending sizes.
type DimensionMismatchError struct {
	Expected int
	Got      int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("%s: expected %d, got %d", ErrDimensionMismatch.Error(), e.Expected, e.Got)
}

func (e *DimensionMismatchError) Unwrap() error { return ErrDimensionMismatch }

// NewDimensionMismatch creates a dimension mismatch error.
func NewDimensionMismatch(expected, got int) error {
	return &DimensionMismatchError{Expected: expected, Got: got}
}

// GenerationError is returned once generation retries are exhausted.
// ContextEmpty tells a data problem (nothing retrieved) apart from an
// availability problem (provider down while context was present).
type GenerationError struct {
	Attempts     int
	ContextEmpty bool
	Err          error
}

func (e *GenerationError) Error() string {
	reason := "generation provider unavailable"
	if e.ContextEmpty {
		reason = "no context found and generation provider unavailable"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s after %d attempt(s): %v", ErrGeneration.Error(), reason, e.Attempts, e.Err)
	}
	return fmt.Sprintf("%s: %s after %d attempt(s)", ErrGeneration.Error(), reason, e.Attempts)
}

// Unwrap exposes both the sentinel and the last provider error.
func (e *GenerationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrGeneration}
	}
	return []error{ErrGeneration, e.Err}
}

// InvalidArgument wraps ErrInvalidArgument with a formatted reason.
func InvalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
