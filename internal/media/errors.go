package media

import "errors"

var (
	// ErrMediaNotFound covers both a missing record and a record whose blob cannot be located.
	ErrMediaNotFound = errors.New("media not found")
	// ErrUpstreamUnavailable indicates storage or the upstream fetch failed.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrConfiguration means no storage backend is configured.
	ErrConfiguration = errors.New("media storage not configured")
	// ErrPreloadTooLarge rejects preload batches above MaxPreloadFiles.
	ErrPreloadTooLarge = errors.New("preload batch too large")
)
