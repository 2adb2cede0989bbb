package storage

import "errors"

// Sentinel errors shared by every store backend.
var (
	// ErrNotFound: no report or cache entry for the key.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey: a report for the same id or (mint, height) was already
	// published. Stores are write-once.
	ErrDuplicateKey = errors.New("duplicate key: report already published")

	// ErrInvalidInput: malformed key, range or limit.
	ErrInvalidInput = errors.New("invalid input")
)
