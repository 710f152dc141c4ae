package auctionerrors

import "errors"

// Error taxonomy for the auction core. Callers classify failures with
// errors.Is; the API layer maps each class to an HTTP status.
var (
	// ErrValidation marks bad input shape or range.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks a missing auction, bid or user.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState marks an operation not allowed in the current
	// lifecycle state, e.g. bidding on a non-active auction.
	ErrInvalidState = errors.New("invalid state")

	// ErrUnauthorized marks a wrong role or ownership conflict.
	ErrUnauthorized = errors.New("not authorized")
)
