package harvest

import "errors"

// Sentinel errors shared across subsystems.
var (
	// ErrNotFound indicates a bounded query or wait resolved without a match.
	ErrNotFound = errors.New("element not found")
	// ErrAlreadyExists indicates the store already holds the article's key.
	ErrAlreadyExists = errors.New("article already exists")
	// ErrEmptyBody indicates an extraction produced no body text; such
	// articles are discarded, never persisted as placeholders.
	ErrEmptyBody = errors.New("article body is empty")

	errEmptyProfileName = errors.New("source profile name is required")
	errEmptyListingURL  = errors.New("source profile listing_url is required")
)
