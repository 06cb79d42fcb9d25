package errors

import "errors"

// Common application errors for type-safe error handling.
// These errors can be checked using errors.Is() instead of string comparison.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")

	// Catalog identifiers
	ErrMissingIdentifier    = errors.New("no numeric identifier in file name")
	ErrIdentifierOutOfRange = errors.New("identifier out of range")
	ErrDuplicateIdentifier  = errors.New("duplicate identifier in catalog")

	// Geocoding
	ErrInvalidCoordinates = errors.New("invalid coordinates")
	ErrNoLocality         = errors.New("no locality in geocoding response")

	ErrThumbnailFailed = errors.New("thumbnail generation failed")
	ErrSyncInProgress  = errors.New("a sync pass is already running")
)
