package commission

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidAmount is returned when the event amount is not positive.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrUnknownSubmitter is returned when the submitter is not in the roster.
	ErrUnknownSubmitter = errors.New("unknown submitter")

	// ErrUnknownTeam is returned when no rules exist for the target team.
	ErrUnknownTeam = errors.New("unknown target team")

	// ErrInvalidRules is returned when a rule set references unknown pools,
	// roles or conditions.
	ErrInvalidRules = errors.New("invalid commission rules")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// ValidationError is an input problem detected before any write.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is a validation failure (no writes made).
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
