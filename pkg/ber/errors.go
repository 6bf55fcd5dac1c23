package ber

import "errors"

// Decode and encode failures. Every error returned by this package wraps
// exactly one of these, so callers can classify failures with errors.Is.
var (
	ErrTruncatedInput      = errors.New("ber: truncated input")
	ErrInvalidLength       = errors.New("ber: invalid length")
	ErrInvalidTag          = errors.New("ber: invalid tag")
	ErrUnexpectedTag       = errors.New("ber: unexpected tag")
	ErrTrailingData        = errors.New("ber: trailing data")
	ErrIncompleteContainer = errors.New("ber: incomplete container")
	ErrIntegerOverflow     = errors.New("ber: integer overflow")
	ErrNestingTooDeep      = errors.New("ber: nesting too deep")
	ErrInvalidContent      = errors.New("ber: invalid content")
	ErrInvalidValue        = errors.New("ber: invalid value")
)
