// Package blobcache memoizes resolved storage URLs by logical media filename.
//
// Entries live for a fixed TTL. Expired entries are treated as absent on read
// and are only replaced when the key is written again or the cache is cleared.
package blobcache

import (
	"context"
	"time"
)

// Cache is the contract shared by the in-memory and Redis stores.
type Cache interface {
	// Get returns the cached URL while it is younger than the TTL.
	Get(ctx context.Context, key string) (string, bool)
	// Set stores url under key, replacing any existing entry.
	Set(ctx context.Context, key, url string) error
	// Delete drops a single key.
	Delete(ctx context.Context, key string) error
	// Clear drops every entry.
	Clear(ctx context.Context) error
	// Stats reports the current entries without modifying them.
	Stats(ctx context.Context) (Stats, error)
}

// Entry is one memoized resolution.
type Entry struct {
	Key        string    `json:"key"`
	URL        string    `json:"url"`
	InsertedAt time.Time `json:"inserted_at"`
}

// EntryStat describes a key for the admin endpoint. URLs are never exposed.
type EntryStat struct {
	Key        string  `json:"key"`
	AgeSeconds float64 `json:"age_seconds"`
	Expired    bool    `json:"expired"`
}

// Stats is a read-only snapshot of the cache.
type Stats struct {
	Count      int         `json:"count"`
	Keys       []string    `json:"keys"`
	Entries    []EntryStat `json:"entries"`
	TTLSeconds float64     `json:"ttl_seconds"`
}

func fresh(e Entry, ttl time.Duration, now time.Time) bool {
	return now.Sub(e.InsertedAt) < ttl
}
