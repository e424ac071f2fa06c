// Package blobstore adapts object storage providers to the listing and URL
// signing operations the blob resolver needs.
package blobstore

import (
	"net/url"
	"strings"
	"time"
)

// Object is one stored blob as reported by a provider listing.
type Object struct {
	Path       string
	Size       int64
	UploadedAt time.Time
}

// WalkFunc receives objects in listing order. Returning false stops the walk.
type WalkFunc func(Object) bool

// publicURL joins base and an object path, escaping each path segment.
func publicURL(base, objectPath string) string {
	segments := strings.Split(objectPath, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.TrimRight(base, "/") + "/" + strings.Join(segments, "/")
}
