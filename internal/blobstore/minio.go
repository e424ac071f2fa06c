package blobstore

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
)

// MinIOStore lists and signs objects in an S3-compatible bucket.
type MinIOStore struct {
	client        *minio.Client
	bucket        string
	prefix        string
	publicBaseURL string
	urlTTL        time.Duration
}

// Options configures a provider adapter.
type Options struct {
	Bucket        string
	Prefix        string
	PublicBaseURL string
	SignedURLTTL  time.Duration
}

// NewMinIOStore constructs an adapter.
func NewMinIOStore(client *minio.Client, opts Options) *MinIOStore {
	return &MinIOStore{
		client:        client,
		bucket:        opts.Bucket,
		prefix:        opts.Prefix,
		publicBaseURL: opts.PublicBaseURL,
		urlTTL:        opts.SignedURLTTL,
	}
}

// Name identifies the provider in logs and diagnostics.
func (s *MinIOStore) Name() string { return "minio" }

// List walks every object under the prefix. minio-go pages through
// ListObjectsV2 transparently; cancelling the context ends the walk early.
func (s *MinIOStore) List(ctx context.Context, fn WalkFunc) error {
	ctx, cancel := context.WithCancel(ctx)
	objects := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    s.prefix,
		Recursive: true,
	})
	// The lister reports cancellation on the channel before closing it.
	defer func() {
		cancel()
		for range objects {
		}
	}()

	for info := range objects {
		if info.Err != nil {
			return fmt.Errorf("list objects in %q: %w", s.bucket, info.Err)
		}
		if !fn(Object{Path: info.Key, Size: info.Size, UploadedAt: info.LastModified}) {
			return nil
		}
	}
	return ctx.Err()
}

// URL returns a fetchable URL for the object: the public base when one is
// configured, otherwise a presigned GET.
func (s *MinIOStore) URL(ctx context.Context, objectPath string) (string, error) {
	if s.publicBaseURL != "" {
		return publicURL(s.publicBaseURL, objectPath), nil
	}

	u, err := s.client.PresignedGetObject(ctx, s.bucket, objectPath, s.urlTTL, make(url.Values))
	if err != nil {
		return "", fmt.Errorf("presign %q: %w", objectPath, err)
	}
	return u.String(), nil
}

// Ping checks that the bucket is reachable.
func (s *MinIOStore) Ping(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("bucket %q does not exist", s.bucket)
	}
	return nil
}
