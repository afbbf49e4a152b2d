package domain

import "errors"

// Failure classes. Handlers convert these to user-facing text at the
// dispatch boundary; nothing below that boundary talks to the user.
var (
	// ErrNotFound covers session, list, user and secret-key lookup misses.
	ErrNotFound = errors.New("not found")

	// ErrDecodeFailure covers malformed navigation tokens and share keys.
	// User-visible behavior is identical to ErrNotFound so the two cases
	// cannot be told apart from the outside.
	ErrDecodeFailure = errors.New("decode failure")

	// ErrUpstream covers store and summarizer unavailability.
	ErrUpstream = errors.New("upstream failure")
)
