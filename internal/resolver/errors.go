package resolver

import "errors"

var (
	// ErrNotFound is returned when no stored object matches the filename.
	ErrNotFound = errors.New("blob not found")
	// ErrStorageUnavailable wraps listing or signing failures.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrConfiguration signals the resolver was built without a storage backend.
	ErrConfiguration = errors.New("storage backend not configured")
)
