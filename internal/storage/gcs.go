package storage

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
)

// NewGCSClient creates a Cloud Storage client using Application Default
// Credentials and checks that the bucket is reachable.
func NewGCSClient(ctx context.Context, bucket string) (*storage.Client, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}

	checkCtx, cancel := context.WithTimeout(ctx, defaultObjectStoreTimeout)
	defer cancel()

	if _, err := client.Bucket(bucket).Attrs(checkCtx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("get gcs bucket %q attributes: %w", bucket, err)
	}
	return client, nil
}
