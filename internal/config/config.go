package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Storage providers understood by the blob resolver.
const (
	ProviderMinIO = "minio"
	ProviderGCS   = "gcs"
)

// Cache backends for resolved blob URLs.
const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

// Config aggregates runtime configuration for the media gateway.
type Config struct {
	Server   ServerConfig
	Postgres PostgresConfig
	Storage  StorageConfig
	Redis    RedisConfig
	Cache    CacheConfig
	Auth     AuthConfig
	Media    MediaConfig
	PubSub   PubSubConfig
	Metrics  MetricsConfig
}

// ServerConfig parameterizes the HTTP server.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Address returns the listen address in host:port form.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// PostgresConfig contains PostgreSQL connection details for the CMS database.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// DSN returns the PostgreSQL DSN string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.Database, p.SSLMode)
}

// StorageConfig selects and configures the object storage holding media blobs.
type StorageConfig struct {
	Provider      string
	Prefix        string
	PublicBaseURL string
	SignedURLTTL  time.Duration
	MinIO         MinIOConfig
	GCS           GCSConfig
}

// MinIOConfig carries MinIO/S3 connection and bucket information.
type MinIOConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UseSSL          bool
	Region          string
}

// GCSConfig names the Google Cloud Storage bucket. Credentials come from ADC.
type GCSConfig struct {
	Bucket string
}

// RedisConfig holds the connection used by the shared cache backend.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// CacheConfig controls the resolved-URL cache.
type CacheConfig struct {
	Backend   string
	TTL       time.Duration
	KeyPrefix string
}

// AuthConfig groups session validation settings.
type AuthConfig struct {
	TokenSecret   string
	TokenTTL      time.Duration
	LookupTimeout time.Duration
	CookieSecure  bool
}

// MediaConfig tunes the media proxy and its admin endpoints.
type MediaConfig struct {
	ResolveTimeout     time.Duration
	UpstreamTimeout    time.Duration
	Coalesce           bool
	PreloadLimit       int
	PreloadConcurrency int
	DebugEnabled       bool
}

// PubSubConfig enables the cache invalidation subscriber when both fields are set.
type PubSubConfig struct {
	ProjectID    string
	Subscription string
}

// Enabled reports whether a subscription is configured.
func (p PubSubConfig) Enabled() bool {
	return p.ProjectID != "" && p.Subscription != ""
}

// MetricsConfig groups observability settings.
type MetricsConfig struct {
	PrometheusPath string
}

// Load reads configuration values from the environment (and a local .env file
// when present), applying defaults and validating the result.
func Load() (Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return Config{}, fmt.Errorf("load .env: %w", err)
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := Config{
		Server: ServerConfig{
			Host:         v.GetString("MEDIAGATE_HOST"),
			Port:         v.GetInt("MEDIAGATE_PORT"),
			ReadTimeout:  v.GetDuration("MEDIAGATE_READ_TIMEOUT"),
			WriteTimeout: v.GetDuration("MEDIAGATE_WRITE_TIMEOUT"),
			IdleTimeout:  v.GetDuration("MEDIAGATE_IDLE_TIMEOUT"),
		},
		Postgres: PostgresConfig{
			Host:     v.GetString("POSTGRES_HOST"),
			Port:     v.GetInt("POSTGRES_PORT"),
			User:     v.GetString("POSTGRES_USER"),
			Password: v.GetString("POSTGRES_PASSWORD"),
			Database: v.GetString("POSTGRES_DB"),
			SSLMode:  strings.ToLower(v.GetString("POSTGRES_SSL_MODE")),
		},
		Storage: StorageConfig{
			Provider:      strings.ToLower(v.GetString("STORAGE_PROVIDER")),
			Prefix:        v.GetString("STORAGE_PREFIX"),
			PublicBaseURL: strings.TrimRight(v.GetString("STORAGE_PUBLIC_BASE_URL"), "/"),
			SignedURLTTL:  v.GetDuration("STORAGE_SIGNED_URL_TTL"),
			MinIO: MinIOConfig{
				Endpoint:        v.GetString("MINIO_ENDPOINT"),
				AccessKeyID:     v.GetString("MINIO_ACCESS_KEY"),
				SecretAccessKey: v.GetString("MINIO_SECRET_KEY"),
				Bucket:          v.GetString("MINIO_BUCKET"),
				UseSSL:          v.GetBool("MINIO_USE_SSL"),
				Region:          v.GetString("MINIO_REGION"),
			},
			GCS: GCSConfig{
				Bucket: v.GetString("GCS_BUCKET"),
			},
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Cache: CacheConfig{
			Backend:   strings.ToLower(v.GetString("CACHE_BACKEND")),
			TTL:       v.GetDuration("CACHE_TTL"),
			KeyPrefix: v.GetString("CACHE_KEY_PREFIX"),
		},
		Auth: AuthConfig{
			TokenSecret:   v.GetString("AUTH_TOKEN_SECRET"),
			TokenTTL:      v.GetDuration("AUTH_TOKEN_TTL"),
			LookupTimeout: v.GetDuration("AUTH_TIMEOUT"),
			CookieSecure:  v.GetBool("AUTH_COOKIE_SECURE"),
		},
		Media: MediaConfig{
			ResolveTimeout:     v.GetDuration("RESOLVER_TIMEOUT"),
			UpstreamTimeout:    v.GetDuration("UPSTREAM_TIMEOUT"),
			Coalesce:           v.GetBool("RESOLVER_COALESCE"),
			PreloadLimit:       v.GetInt("PRELOAD_DEFAULT_LIMIT"),
			PreloadConcurrency: v.GetInt("PRELOAD_CONCURRENCY"),
			DebugEnabled:       v.GetBool("MEDIA_DEBUG_ENABLED"),
		},
		PubSub: PubSubConfig{
			ProjectID:    v.GetString("PUBSUB_PROJECT_ID"),
			Subscription: v.GetString("PUBSUB_SUBSCRIPTION"),
		},
		Metrics: MetricsConfig{
			PrometheusPath: v.GetString("MEDIAGATE_METRICS_PATH"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("MEDIAGATE_HOST", "0.0.0.0")
	v.SetDefault("MEDIAGATE_PORT", 8080)
	v.SetDefault("MEDIAGATE_READ_TIMEOUT", 15*time.Second)
	v.SetDefault("MEDIAGATE_WRITE_TIMEOUT", 60*time.Second)
	v.SetDefault("MEDIAGATE_IDLE_TIMEOUT", 60*time.Second)
	v.SetDefault("MEDIAGATE_METRICS_PATH", "/metrics")

	v.SetDefault("POSTGRES_HOST", "localhost")
	v.SetDefault("POSTGRES_PORT", 5432)
	v.SetDefault("POSTGRES_USER", "cms")
	v.SetDefault("POSTGRES_PASSWORD", "")
	v.SetDefault("POSTGRES_DB", "cms")
	v.SetDefault("POSTGRES_SSL_MODE", "disable")

	v.SetDefault("STORAGE_PROVIDER", ProviderMinIO)
	v.SetDefault("STORAGE_PREFIX", "")
	v.SetDefault("STORAGE_PUBLIC_BASE_URL", "")
	v.SetDefault("STORAGE_SIGNED_URL_TTL", time.Hour)
	v.SetDefault("MINIO_ENDPOINT", "localhost:9000")
	v.SetDefault("MINIO_ACCESS_KEY", "")
	v.SetDefault("MINIO_SECRET_KEY", "")
	v.SetDefault("MINIO_BUCKET", "media")
	v.SetDefault("MINIO_USE_SSL", false)
	v.SetDefault("MINIO_REGION", "")
	v.SetDefault("GCS_BUCKET", "")

	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("CACHE_BACKEND", CacheBackendMemory)
	v.SetDefault("CACHE_TTL", 5*time.Minute)
	v.SetDefault("CACHE_KEY_PREFIX", "mediagate:blob:")

	v.SetDefault("AUTH_TOKEN_SECRET", "")
	v.SetDefault("AUTH_TOKEN_TTL", 2*time.Hour)
	v.SetDefault("AUTH_TIMEOUT", 5*time.Second)
	v.SetDefault("AUTH_COOKIE_SECURE", true)

	v.SetDefault("RESOLVER_TIMEOUT", 10*time.Second)
	v.SetDefault("UPSTREAM_TIMEOUT", 10*time.Second)
	v.SetDefault("RESOLVER_COALESCE", false)
	v.SetDefault("PRELOAD_DEFAULT_LIMIT", 20)
	v.SetDefault("PRELOAD_CONCURRENCY", 4)
	v.SetDefault("MEDIA_DEBUG_ENABLED", false)
}

// Validate rejects configurations the service cannot run with.
func (c Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 {
		errs = append(errs, fmt.Errorf("MEDIAGATE_PORT must be > 0"))
	}

	switch c.Storage.Provider {
	case ProviderMinIO:
		if c.Storage.MinIO.AccessKeyID == "" || c.Storage.MinIO.SecretAccessKey == "" {
			errs = append(errs, fmt.Errorf("MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required for storage provider %q", ProviderMinIO))
		}
		if c.Storage.MinIO.Bucket == "" {
			errs = append(errs, fmt.Errorf("MINIO_BUCKET is required"))
		}
	case ProviderGCS:
		if c.Storage.GCS.Bucket == "" {
			errs = append(errs, fmt.Errorf("GCS_BUCKET is required for storage provider %q", ProviderGCS))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_PROVIDER %q", c.Storage.Provider))
	}

	switch c.Cache.Backend {
	case CacheBackendMemory, CacheBackendRedis:
	default:
		errs = append(errs, fmt.Errorf("unknown CACHE_BACKEND %q", c.Cache.Backend))
	}
	if c.Cache.TTL <= 0 {
		errs = append(errs, fmt.Errorf("CACHE_TTL must be > 0"))
	}
	if c.Storage.PublicBaseURL == "" && c.Storage.SignedURLTTL <= c.Cache.TTL {
		errs = append(errs, fmt.Errorf("STORAGE_SIGNED_URL_TTL (%s) must exceed CACHE_TTL (%s)", c.Storage.SignedURLTTL, c.Cache.TTL))
	}

	if c.Auth.TokenSecret == "" {
		errs = append(errs, fmt.Errorf("AUTH_TOKEN_SECRET is required"))
	}
	if c.Auth.LookupTimeout <= 0 {
		errs = append(errs, fmt.Errorf("AUTH_TIMEOUT must be > 0"))
	}

	if c.Media.ResolveTimeout <= 0 || c.Media.UpstreamTimeout <= 0 {
		errs = append(errs, fmt.Errorf("RESOLVER_TIMEOUT and UPSTREAM_TIMEOUT must be > 0"))
	}
	if c.Media.PreloadConcurrency <= 0 {
		errs = append(errs, fmt.Errorf("PRELOAD_CONCURRENCY must be > 0"))
	}

	return errors.Join(errs...)
}
