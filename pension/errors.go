/*
errors.go - Error types for the pension engine

ERROR CATEGORIES:
  1. Missing data - a table year is absent (re-exported from indices)
  2. Validation  - malformed parameters, reported before any year runs
  3. Eligibility - too few contributory years for a pension

Callers branch with errors.Is on the sentinels; structured errors carry
the offending field or counts for display.
*/
package pension

import (
	"errors"
	"fmt"

	"github.com/warp/pension-engine/indices"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrMissingData is returned when a required year is absent from a table.
	ErrMissingData = indices.ErrMissingData

	// ErrValidation is returned for malformed engine parameters.
	ErrValidation = errors.New("validation failed")

	// ErrNotEligible is returned when the contributory record is too short.
	ErrNotEligible = errors.New("not eligible for a pension")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// ValidationError names the parameter that failed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// NotEligibleError reports the contributory years found and required.
type NotEligibleError struct {
	Years    int
	Required int
}

func (e *NotEligibleError) Error() string {
	return fmt.Sprintf("not eligible: %d contributory years, %d required", e.Years, e.Required)
}

func (e *NotEligibleError) Unwrap() error {
	return ErrNotEligible
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to the caller's input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrNotEligible)
}
