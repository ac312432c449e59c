package ledger

import "errors"

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrLineNotFound is returned when a line id does not exist.
	ErrLineNotFound = errors.New("payout line not found")

	// ErrInvalidLine is returned when a line fails Validate.
	ErrInvalidLine = errors.New("invalid payout line")

	// ErrFeedClosed is returned when watching a feed that has shut down.
	ErrFeedClosed = errors.New("ledger feed closed")
)
