// Package resolver turns logical media filenames into fetchable storage URLs
// through a read-through cache.
package resolver

import (
	"context"
	"fmt"
	"time"

	"github.com/abduss/mediagate/internal/blobcache"
	"github.com/abduss/mediagate/internal/blobstore"
	"github.com/abduss/mediagate/internal/logger"
	"github.com/abduss/mediagate/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const defaultTimeout = 10 * time.Second

type objectStore interface {
	List(ctx context.Context, fn blobstore.WalkFunc) error
	URL(ctx context.Context, objectPath string) (string, error)
}

// Options tunes a Resolver.
type Options struct {
	// Timeout bounds one listing plus signing on a cache miss.
	Timeout time.Duration
	// Coalesce shares one in-flight resolution between concurrent misses for
	// the same filename. Off by default: duplicate misses each list storage.
	Coalesce bool
}

// Resolver is a read-through cache in front of object storage listings.
type Resolver struct {
	cache    blobcache.Cache
	store    objectStore
	timeout  time.Duration
	coalesce bool
	group    singleflight.Group
}

// New constructs a Resolver. A nil store makes every miss fail with
// ErrConfiguration.
func New(cache blobcache.Cache, store objectStore, opts Options) *Resolver {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Resolver{
		cache:    cache,
		store:    store,
		timeout:  timeout,
		coalesce: opts.Coalesce,
	}
}

// Resolve returns the storage URL for filename, consulting the cache first.
// A miss performs exactly one storage listing.
func (r *Resolver) Resolve(ctx context.Context, filename string) (string, error) {
	if filename == "" {
		return "", ErrNotFound
	}

	if url, ok := r.cache.Get(ctx, filename); ok {
		metrics.ObserveCacheLookup(true)
		return url, nil
	}
	metrics.ObserveCacheLookup(false)

	if r.store == nil {
		return "", ErrConfiguration
	}

	if !r.coalesce {
		return r.resolveMiss(ctx, filename)
	}

	// The shared call must not die with whichever caller started it.
	shared := context.WithoutCancel(ctx)
	v, err, _ := r.group.Do(filename, func() (interface{}, error) {
		return r.resolveMiss(shared, filename)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (r *Resolver) resolveMiss(ctx context.Context, filename string) (string, error) {
	log := logger.FromContext(ctx).With(zap.String("filename", filename))

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var matches []string
	start := time.Now()
	err := r.store.List(ctx, func(obj blobstore.Object) bool {
		rule := Classify(filename, obj.Path)
		if rule == RuleNone {
			return true
		}
		matches = append(matches, obj.Path)
		return rule != RuleExact
	})
	metrics.ObserveStorageList(time.Since(start), err)
	if err != nil {
		log.Error("storage listing failed", zap.String("step", "list"), zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	objectPath, ok := MatchCandidates(filename, matches)
	if !ok {
		log.Info("no stored object matches filename", zap.String("step", "match"))
		return "", ErrNotFound
	}

	url, err := r.store.URL(ctx, objectPath)
	if err != nil {
		log.Error("signing object url failed", zap.String("step", "sign"), zap.String("object", objectPath), zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	if err := r.cache.Set(ctx, filename, url); err != nil {
		log.Warn("blob cache set failed", zap.Error(err))
	}
	log.Debug("resolved filename", zap.String("object", objectPath))
	return url, nil
}

// Candidate is one object considered during an inspection.
type Candidate struct {
	Path       string    `json:"path"`
	Rule       string    `json:"rule"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Inspection is a diagnostic view of how filename would resolve.
type Inspection struct {
	TotalObjects int         `json:"total_objects"`
	Candidates   []Candidate `json:"candidates"`
	Match        string      `json:"match,omitempty"`
}

// Inspect walks the full listing without touching the cache and reports up to
// limit matching candidates plus the object Resolve would choose.
func (r *Resolver) Inspect(ctx context.Context, filename string, limit int) (Inspection, error) {
	if r.store == nil {
		return Inspection{}, ErrConfiguration
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var (
		result  Inspection
		matches []string
	)
	err := r.store.List(ctx, func(obj blobstore.Object) bool {
		result.TotalObjects++
		rule := Classify(filename, obj.Path)
		if rule == RuleNone {
			return true
		}
		matches = append(matches, obj.Path)
		if len(result.Candidates) < limit {
			result.Candidates = append(result.Candidates, Candidate{
				Path:       obj.Path,
				Rule:       rule.String(),
				Size:       obj.Size,
				UploadedAt: obj.UploadedAt,
			})
		}
		return true
	})
	if err != nil {
		return Inspection{}, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	if objectPath, ok := MatchCandidates(filename, matches); ok {
		result.Match = objectPath
	}
	return result, nil
}
