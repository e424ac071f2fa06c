package blobstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// GCSStore lists and signs objects in a Google Cloud Storage bucket.
type GCSStore struct {
	client        *storage.Client
	bucket        string
	prefix        string
	publicBaseURL string
	urlTTL        time.Duration
}

// NewGCSStore constructs an adapter.
func NewGCSStore(client *storage.Client, opts Options) *GCSStore {
	return &GCSStore{
		client:        client,
		bucket:        opts.Bucket,
		prefix:        opts.Prefix,
		publicBaseURL: opts.PublicBaseURL,
		urlTTL:        opts.SignedURLTTL,
	}
}

// Name identifies the provider in logs and diagnostics.
func (s *GCSStore) Name() string { return "gcs" }

// List walks every object under the prefix, following page tokens until the
// iterator is exhausted or fn returns false.
func (s *GCSStore) List(ctx context.Context, fn WalkFunc) error {
	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: s.prefix})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("list objects in %q: %w", s.bucket, err)
		}
		if !fn(Object{Path: attrs.Name, Size: attrs.Size, UploadedAt: attrs.Created}) {
			return nil
		}
	}
}

// URL returns the public URL when configured, otherwise a V4 signed GET.
func (s *GCSStore) URL(_ context.Context, objectPath string) (string, error) {
	if s.publicBaseURL != "" {
		return publicURL(s.publicBaseURL, objectPath), nil
	}

	signed, err := s.client.Bucket(s.bucket).SignedURL(objectPath, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  http.MethodGet,
		Expires: time.Now().Add(s.urlTTL),
	})
	if err != nil {
		return "", fmt.Errorf("sign %q: %w", objectPath, err)
	}
	return signed, nil
}

// Ping checks that the bucket is reachable.
func (s *GCSStore) Ping(ctx context.Context) error {
	_, err := s.client.Bucket(s.bucket).Attrs(ctx)
	return err
}
