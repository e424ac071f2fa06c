package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/abduss/mediagate/internal/blobcache"
	"github.com/abduss/mediagate/internal/logger"
	"github.com/abduss/mediagate/internal/metrics"
	"github.com/abduss/mediagate/internal/resolver"
	"go.uber.org/zap"
)

const (
	defaultUpstreamTimeout    = 10 * time.Second
	defaultPreloadLimit       = 20
	defaultPreloadConcurrency = 4
	debugCandidateLimit       = 20

	// MaxPreloadFiles caps both the explicit file list and the record limit of one preload.
	MaxPreloadFiles = 100
)

type recordStore interface {
	FindByFilename(ctx context.Context, filename string) (Record, error)
	ListRecentlyUpdated(ctx context.Context, limit int) ([]Record, error)
}

type urlResolver interface {
	Resolve(ctx context.Context, filename string) (string, error)
	Inspect(ctx context.Context, filename string, limit int) (resolver.Inspection, error)
}

type cacheAdmin interface {
	Stats(ctx context.Context) (blobcache.Stats, error)
	Clear(ctx context.Context) error
}

// Options tunes the media service.
type Options struct {
	// UpstreamTimeout bounds the wait for upstream response headers.
	UpstreamTimeout    time.Duration
	PreloadLimit       int
	PreloadConcurrency int
	HTTPClient         *http.Client
}

// Service serves media bytes and administers the blob URL cache.
type Service struct {
	records     recordStore
	resolver    urlResolver
	cache       cacheAdmin
	client      *http.Client
	timeout     time.Duration
	preloadN    int
	concurrency int
}

// NewService wires the media service.
func NewService(records recordStore, res urlResolver, cache cacheAdmin, opts Options) *Service {
	s := &Service{
		records:     records,
		resolver:    res,
		cache:       cache,
		client:      opts.HTTPClient,
		timeout:     opts.UpstreamTimeout,
		preloadN:    opts.PreloadLimit,
		concurrency: opts.PreloadConcurrency,
	}
	if s.client == nil {
		s.client = &http.Client{}
	}
	if s.timeout <= 0 {
		s.timeout = defaultUpstreamTimeout
	}
	if s.preloadN <= 0 {
		s.preloadN = defaultPreloadLimit
	}
	if s.concurrency <= 0 {
		s.concurrency = defaultPreloadConcurrency
	}
	return s
}

// Open looks up the record for filename, locates its bytes and starts the
// upstream fetch. The returned body is tied to ctx.
func (s *Service) Open(ctx context.Context, filename string) (Download, error) {
	log := logger.FromContext(ctx).With(zap.String("filename", filename))
	if strings.TrimSpace(filename) == "" {
		return Download{}, ErrMediaNotFound
	}

	record, err := s.records.FindByFilename(ctx, filename)
	if err != nil {
		if errors.Is(err, ErrMediaNotFound) {
			log.Info("no media record", zap.String("step", "lookup"))
			return Download{}, ErrMediaNotFound
		}
		log.Error("media record lookup failed", zap.String("step", "lookup"), zap.Error(err))
		return Download{}, err
	}

	target, err := s.locate(ctx, record)
	if err != nil {
		return Download{}, err
	}

	body, length, err := s.fetch(ctx, target)
	if err != nil {
		log.Warn("upstream fetch failed", zap.String("step", "fetch"), zap.Error(err))
		return Download{}, err
	}
	return Download{Record: record, Body: body, ContentLength: length}, nil
}

func (s *Service) locate(ctx context.Context, record Record) (string, error) {
	if direct, ok := record.DirectURL(); ok {
		return direct, nil
	}
	if s.resolver == nil {
		return "", ErrConfiguration
	}

	target, err := s.resolver.Resolve(ctx, record.Filename)
	switch {
	case err == nil:
		return target, nil
	case errors.Is(err, resolver.ErrNotFound):
		return "", ErrMediaNotFound
	case errors.Is(err, resolver.ErrConfiguration):
		return "", ErrConfiguration
	default:
		return "", fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
}

// fetch issues the upstream GET. The timeout covers connection and response
// headers; the body stays bound to ctx so a client disconnect stops the copy.
func (s *Service) fetch(ctx context.Context, target string) (io.ReadCloser, int64, error) {
	fetchCtx, cancel := context.WithCancel(ctx)
	timer := time.AfterFunc(s.timeout, cancel)

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, target, nil)
	if err != nil {
		timer.Stop()
		cancel()
		metrics.ObserveUpstreamFetch("error")
		return nil, 0, fmt.Errorf("%w: build request: %v", ErrUpstreamUnavailable, err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		timer.Stop()
		cancel()
		metrics.ObserveUpstreamFetch("error")
		return nil, 0, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	if !timer.Stop() {
		resp.Body.Close()
		cancel()
		metrics.ObserveUpstreamFetch("error")
		return nil, 0, fmt.Errorf("%w: timed out after %s", ErrUpstreamUnavailable, s.timeout)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		cancel()
		metrics.ObserveUpstreamFetch("status")
		return nil, 0, fmt.Errorf("%w: upstream status %d", ErrUpstreamUnavailable, resp.StatusCode)
	}

	metrics.ObserveUpstreamFetch("ok")
	return &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}, resp.ContentLength, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

// Preload resolves filenames to warm the cache. With no filenames it takes the
// most recently updated records, up to limit (or the configured default).
// Results keep input order. More than MaxPreloadFiles files, or a larger
// limit, is rejected with ErrPreloadTooLarge.
func (s *Service) Preload(ctx context.Context, filenames []string, limit int) ([]PreloadResult, error) {
	if s.resolver == nil {
		return nil, ErrConfiguration
	}

	if len(filenames) > MaxPreloadFiles || limit > MaxPreloadFiles {
		return nil, ErrPreloadTooLarge
	}

	if len(filenames) == 0 {
		if limit <= 0 {
			limit = s.preloadN
		}
		records, err := s.records.ListRecentlyUpdated(ctx, limit)
		if err != nil {
			return nil, fmt.Errorf("list recent media: %w", err)
		}
		for _, rec := range records {
			filenames = append(filenames, rec.Filename)
		}
	}

	results := make([]PreloadResult, len(filenames))
	indexes := make(chan int)
	var wg sync.WaitGroup

	workers := min(s.concurrency, len(filenames))
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				result := PreloadResult{Filename: filenames[i]}
				if _, err := s.resolver.Resolve(ctx, filenames[i]); err != nil {
					result.Error = preloadError(err)
				} else {
					result.Resolved = true
				}
				results[i] = result
			}
		}()
	}

	next := 0
feed:
	for ; next < len(filenames) && ctx.Err() == nil; next++ {
		select {
		case indexes <- next:
		case <-ctx.Done():
			break feed
		}
	}
	close(indexes)
	wg.Wait()

	for i := next; i < len(filenames); i++ {
		results[i] = PreloadResult{Filename: filenames[i], Error: "cancelled"}
	}

	return results, nil
}

func preloadError(err error) string {
	switch {
	case errors.Is(err, resolver.ErrNotFound):
		return "not found"
	case errors.Is(err, resolver.ErrConfiguration):
		return "storage not configured"
	default:
		return "storage unavailable"
	}
}

// Stats returns a snapshot of the blob URL cache.
func (s *Service) Stats(ctx context.Context) (blobcache.Stats, error) {
	return s.cache.Stats(ctx)
}

// Clear empties the blob URL cache.
func (s *Service) Clear(ctx context.Context) error {
	return s.cache.Clear(ctx)
}

// Debug reports the record (if any) and the storage candidates for filename.
func (s *Service) Debug(ctx context.Context, filename string) (DebugReport, error) {
	if s.resolver == nil {
		return DebugReport{}, ErrConfiguration
	}

	var report DebugReport
	record, err := s.records.FindByFilename(ctx, filename)
	switch {
	case err == nil:
		report.Record = &record
	case !errors.Is(err, ErrMediaNotFound):
		return DebugReport{}, err
	}

	inspection, err := s.resolver.Inspect(ctx, filename, debugCandidateLimit)
	if err != nil {
		if errors.Is(err, resolver.ErrConfiguration) {
			return DebugReport{}, ErrConfiguration
		}
		return DebugReport{}, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	report.TotalObjects = inspection.TotalObjects
	report.Candidates = inspection.Candidates
	report.Match = inspection.Match
	return report, nil
}
