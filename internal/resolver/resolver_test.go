package resolver

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/abduss/mediagate/internal/blobcache"
	"github.com/abduss/mediagate/internal/blobstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	objects   []string
	listErr   error
	urlErr    error
	listCalls atomic.Int32
	visited   atomic.Int32
	delay     time.Duration
}

func (f *fakeStore) List(ctx context.Context, fn blobstore.WalkFunc) error {
	f.listCalls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.listErr != nil {
		return f.listErr
	}
	for _, p := range f.objects {
		f.visited.Add(1)
		if !fn(blobstore.Object{Path: p, Size: 10}) {
			return nil
		}
	}
	return nil
}

func (f *fakeStore) URL(_ context.Context, objectPath string) (string, error) {
	if f.urlErr != nil {
		return "", f.urlErr
	}
	return "https://blob.example.com/" + objectPath, nil
}

func TestResolveMissListsOnceAndPopulatesCache(t *testing.T) {
	store := &fakeStore{objects: []string{"uploads/headshot.png", "uploads/resume.pdf"}}
	cache := blobcache.NewMemoryStore(time.Minute)
	r := New(cache, store, Options{})

	url, err := r.Resolve(context.Background(), "resume.pdf")
	require.NoError(t, err)
	assert.Equal(t, "https://blob.example.com/uploads/resume.pdf", url)
	assert.EqualValues(t, 1, store.listCalls.Load())

	cached, ok := cache.Get(context.Background(), "resume.pdf")
	require.True(t, ok)
	assert.Equal(t, url, cached)
}

func TestResolveHitSkipsListing(t *testing.T) {
	store := &fakeStore{objects: []string{"uploads/resume.pdf"}}
	cache := blobcache.NewMemoryStore(time.Minute)
	require.NoError(t, cache.Set(context.Background(), "resume.pdf", "https://cached"))
	r := New(cache, store, Options{})

	for i := 0; i < 3; i++ {
		url, err := r.Resolve(context.Background(), "resume.pdf")
		require.NoError(t, err)
		assert.Equal(t, "https://cached", url)
	}
	assert.Zero(t, store.listCalls.Load())
}

func TestResolveNotFoundDoesNotCache(t *testing.T) {
	store := &fakeStore{objects: []string{"uploads/headshot.png"}}
	cache := blobcache.NewMemoryStore(time.Minute)
	r := New(cache, store, Options{})

	_, err := r.Resolve(context.Background(), "resume.pdf")
	assert.ErrorIs(t, err, ErrNotFound)

	stats, err := cache.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Count)
}

func TestResolveEncodedObjectPath(t *testing.T) {
	store := &fakeStore{objects: []string{"folder/my%20file.pdf"}}
	r := New(blobcache.NewMemoryStore(time.Minute), store, Options{})

	url, err := r.Resolve(context.Background(), "my file.pdf")
	require.NoError(t, err)
	assert.Equal(t, "https://blob.example.com/folder/my%20file.pdf", url)
}

func TestResolveStopsWalkingOnExactMatch(t *testing.T) {
	store := &fakeStore{objects: []string{"a/resume-old.pdf", "b/resume.pdf", "c/x.png", "d/y.png"}}
	r := New(blobcache.NewMemoryStore(time.Minute), store, Options{})

	url, err := r.Resolve(context.Background(), "resume.pdf")
	require.NoError(t, err)
	assert.Equal(t, "https://blob.example.com/b/resume.pdf", url)
	assert.EqualValues(t, 2, store.visited.Load())
}

func TestResolveStorageFailures(t *testing.T) {
	t.Run("listing", func(t *testing.T) {
		store := &fakeStore{listErr: errors.New("access denied")}
		r := New(blobcache.NewMemoryStore(time.Minute), store, Options{})
		_, err := r.Resolve(context.Background(), "a.pdf")
		assert.ErrorIs(t, err, ErrStorageUnavailable)
	})
	t.Run("signing", func(t *testing.T) {
		store := &fakeStore{objects: []string{"a.pdf"}, urlErr: errors.New("no signer")}
		r := New(blobcache.NewMemoryStore(time.Minute), store, Options{})
		_, err := r.Resolve(context.Background(), "a.pdf")
		assert.ErrorIs(t, err, ErrStorageUnavailable)
	})
	t.Run("no backend", func(t *testing.T) {
		r := New(blobcache.NewMemoryStore(time.Minute), nil, Options{})
		_, err := r.Resolve(context.Background(), "a.pdf")
		assert.ErrorIs(t, err, ErrConfiguration)
	})
}

func TestResolveExpiredEntryListsAgain(t *testing.T) {
	store := &fakeStore{objects: []string{"a.pdf"}}
	r := New(blobcache.NewMemoryStore(20*time.Millisecond), store, Options{})

	_, err := r.Resolve(context.Background(), "a.pdf")
	require.NoError(t, err)
	time.Sleep(30 * time.Millisecond)
	_, err = r.Resolve(context.Background(), "a.pdf")
	require.NoError(t, err)

	assert.EqualValues(t, 2, store.listCalls.Load())
}

func TestResolveConcurrentMisses(t *testing.T) {
	run := func(coalesce bool) int32 {
		store := &fakeStore{objects: []string{"a.pdf"}, delay: 100 * time.Millisecond}
		r := New(blobcache.NewMemoryStore(time.Minute), store, Options{Coalesce: coalesce})

		var wg sync.WaitGroup
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				url, err := r.Resolve(context.Background(), "a.pdf")
				assert.NoError(t, err)
				assert.Equal(t, "https://blob.example.com/a.pdf", url)
			}()
		}
		wg.Wait()
		return store.listCalls.Load()
	}

	assert.EqualValues(t, 5, run(false), "without coalescing every concurrent miss lists storage")
	assert.EqualValues(t, 1, run(true), "coalescing shares one listing")
}

func TestInspectReportsCandidates(t *testing.T) {
	store := &fakeStore{objects: []string{"a/guide-1.pdf", "b/other.png", "c/guide.pdf", "d/guide-2.pdf"}}
	cache := blobcache.NewMemoryStore(time.Minute)
	r := New(cache, store, Options{})

	got, err := r.Inspect(context.Background(), "guide.pdf", 20)
	require.NoError(t, err)
	assert.Equal(t, 4, got.TotalObjects)
	require.Len(t, got.Candidates, 1)
	assert.Equal(t, "exact", got.Candidates[0].Rule)
	assert.Equal(t, "c/guide.pdf", got.Match)

	got, err = r.Inspect(context.Background(), "guide", 2)
	require.NoError(t, err)
	assert.Len(t, got.Candidates, 2)
	assert.Equal(t, "a/guide-1.pdf", got.Match)

	stats, err := cache.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Count, "inspection must not populate the cache")
}
