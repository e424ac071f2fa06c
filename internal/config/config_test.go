package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("MINIO_ACCESS_KEY", "media-reader")
	t.Setenv("MINIO_SECRET_KEY", "media-reader-secret")
	t.Setenv("AUTH_TOKEN_SECRET", "session-secret")
}

func TestLoadAppliesDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Address())
	assert.Equal(t, ProviderMinIO, cfg.Storage.Provider)
	assert.Equal(t, CacheBackendMemory, cfg.Cache.Backend)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 10*time.Second, cfg.Media.UpstreamTimeout)
	assert.Equal(t, 20, cfg.Media.PreloadLimit)
	assert.False(t, cfg.Media.DebugEnabled)
	assert.False(t, cfg.PubSub.Enabled())
}

func TestLoadReadsOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MEDIAGATE_PORT", "9090")
	t.Setenv("CACHE_TTL", "90s")
	t.Setenv("CACHE_BACKEND", "REDIS")
	t.Setenv("RESOLVER_COALESCE", "true")
	t.Setenv("STORAGE_PUBLIC_BASE_URL", "https://cdn.example.com/media/")
	t.Setenv("PUBSUB_PROJECT_ID", "careers-site")
	t.Setenv("PUBSUB_SUBSCRIPTION", "media-changes")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 90*time.Second, cfg.Cache.TTL)
	assert.Equal(t, CacheBackendRedis, cfg.Cache.Backend)
	assert.True(t, cfg.Media.Coalesce)
	assert.Equal(t, "https://cdn.example.com/media", cfg.Storage.PublicBaseURL)
	assert.True(t, cfg.PubSub.Enabled())
}

func TestLoadRejectsMissingStorageCredentials(t *testing.T) {
	t.Setenv("AUTH_TOKEN_SECRET", "session-secret")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MINIO_ACCESS_KEY")
}

func TestValidateGCSRequiresBucket(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("STORAGE_PROVIDER", "gcs")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GCS_BUCKET")
}

func TestValidateSignedURLMustOutliveCache(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CACHE_TTL", "2h")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STORAGE_SIGNED_URL_TTL")
}
