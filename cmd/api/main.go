package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/abduss/mediagate/internal/auth"
	"github.com/abduss/mediagate/internal/blobcache"
	"github.com/abduss/mediagate/internal/blobstore"
	"github.com/abduss/mediagate/internal/config"
	"github.com/abduss/mediagate/internal/invalidation"
	"github.com/abduss/mediagate/internal/logger"
	"github.com/abduss/mediagate/internal/media"
	"github.com/abduss/mediagate/internal/resolver"
	"github.com/abduss/mediagate/internal/server"
	"github.com/abduss/mediagate/internal/storage"
	"go.uber.org/zap"
)

type objectStore interface {
	List(ctx context.Context, fn blobstore.WalkFunc) error
	URL(ctx context.Context, objectPath string) (string, error)
	Ping(ctx context.Context) error
	Name() string
}

func main() {
	zl, err := logger.Init()
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	if err := run(zl); err != nil {
		zl.Fatal("mediagate stopped", zap.Error(err))
	}
}

func run(zl *zap.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool, err := storage.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer dbPool.Close()

	store, closeStore, err := openObjectStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer closeStore()

	deps := server.Dependencies{
		Config:      cfg,
		DB:          dbPool,
		ObjectStore: store,
	}

	var cache blobcache.Cache
	switch cfg.Cache.Backend {
	case config.CacheBackendRedis:
		rdb, err := storage.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer rdb.Close()
		cache = blobcache.NewRedisStore(rdb, cfg.Cache.KeyPrefix, cfg.Cache.TTL, zl)
		deps.Cache = server.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	default:
		cache = blobcache.NewMemoryStore(cfg.Cache.TTL)
	}

	res := resolver.New(cache, store, resolver.Options{
		Timeout:  cfg.Media.ResolveTimeout,
		Coalesce: cfg.Media.Coalesce,
	})

	deps.AuthService = auth.NewService(auth.NewRepository(dbPool), cfg.Auth)
	deps.MediaService = media.NewService(media.NewRepository(dbPool), res, cache, media.Options{
		UpstreamTimeout:    cfg.Media.UpstreamTimeout,
		PreloadLimit:       cfg.Media.PreloadLimit,
		PreloadConcurrency: cfg.Media.PreloadConcurrency,
	})

	if cfg.PubSub.Enabled() {
		client, subscription, err := invalidation.Connect(ctx, cfg.PubSub.ProjectID, cfg.PubSub.Subscription)
		if err != nil {
			return err
		}
		defer client.Close()

		subscriber := invalidation.NewSubscriber(subscription, cache, zl)
		go func() {
			if err := subscriber.Run(ctx); err != nil {
				zl.Error("invalidation subscriber stopped", zap.Error(err))
			}
		}()
	}

	httpServer := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      server.NewRouter(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		zl.Info("mediagate listening",
			zap.String("addr", cfg.Server.Address()),
			zap.String("storage", store.Name()),
			zap.String("cache", cfg.Cache.Backend))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	zl.Info("shutting down gracefully")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zl.Warn("shutdown error", zap.Error(err))
	}
	return nil
}

func openObjectStore(ctx context.Context, cfg config.StorageConfig) (objectStore, func(), error) {
	opts := blobstore.Options{
		Prefix:        cfg.Prefix,
		PublicBaseURL: cfg.PublicBaseURL,
		SignedURLTTL:  cfg.SignedURLTTL,
	}

	switch cfg.Provider {
	case config.ProviderGCS:
		client, err := storage.NewGCSClient(ctx, cfg.GCS.Bucket)
		if err != nil {
			return nil, nil, fmt.Errorf("connect gcs: %w", err)
		}
		opts.Bucket = cfg.GCS.Bucket
		return blobstore.NewGCSStore(client, opts), func() { _ = client.Close() }, nil
	default:
		client, err := storage.NewMinIOClient(cfg.MinIO)
		if err != nil {
			return nil, nil, fmt.Errorf("connect minio: %w", err)
		}
		if err := storage.VerifyBucket(ctx, client, cfg.MinIO.Bucket); err != nil {
			return nil, nil, fmt.Errorf("verify bucket: %w", err)
		}
		opts.Bucket = cfg.MinIO.Bucket
		return blobstore.NewMinIOStore(client, opts), func() {}, nil
	}
}
