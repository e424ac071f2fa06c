package blobcache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore(ttl time.Duration) (*MemoryStore, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := NewMemoryStore(ttl)
	store.now = clock.Now
	return store, clock
}

func TestMemoryStoreGetReturnsFreshEntry(t *testing.T) {
	store, clock := newTestStore(5 * time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "resume-sample.pdf", "https://blob.example.com/resume-sample.pdf"))
	clock.Advance(4*time.Minute + 59*time.Second)

	url, ok := store.Get(ctx, "resume-sample.pdf")
	require.True(t, ok)
	assert.Equal(t, "https://blob.example.com/resume-sample.pdf", url)
}

func TestMemoryStoreExpiredEntryIsAbsentButRetained(t *testing.T) {
	store, clock := newTestStore(5 * time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "a.png", "https://blob.example.com/a.png"))
	clock.Advance(5 * time.Minute)

	_, ok := store.Get(ctx, "a.png")
	assert.False(t, ok, "entry at exactly the TTL must be treated as absent")

	_, retained := store.entries["a.png"]
	assert.True(t, retained, "expired entries are evicted lazily, not removed on read")

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	require.Len(t, stats.Entries, 1)
	assert.True(t, stats.Entries[0].Expired)
}

func TestMemoryStoreSetOverwritesAndResetsAge(t *testing.T) {
	store, clock := newTestStore(time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "a.png", "https://old"))
	clock.Advance(50 * time.Second)
	require.NoError(t, store.Set(ctx, "a.png", "https://new"))
	clock.Advance(50 * time.Second)

	url, ok := store.Get(ctx, "a.png")
	require.True(t, ok)
	assert.Equal(t, "https://new", url)
}

func TestMemoryStoreClearDropsEverything(t *testing.T) {
	store, _ := newTestStore(time.Minute)
	ctx := context.Background()

	for _, key := range []string{"a.png", "b.pdf", "c.docx"} {
		require.NoError(t, store.Set(ctx, key, "https://blob/"+key))
	}
	require.NoError(t, store.Clear(ctx))

	for _, key := range []string{"a.png", "b.pdf", "c.docx"} {
		_, ok := store.Get(ctx, key)
		assert.False(t, ok, key)
	}
	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Count)
}

func TestMemoryStoreDeleteRemovesOneKey(t *testing.T) {
	store, _ := newTestStore(time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "a.png", "https://blob/a.png"))
	require.NoError(t, store.Set(ctx, "b.png", "https://blob/b.png"))
	require.NoError(t, store.Delete(ctx, "a.png"))

	_, ok := store.Get(ctx, "a.png")
	assert.False(t, ok)
	_, ok = store.Get(ctx, "b.png")
	assert.True(t, ok)
}

func TestMemoryStoreStatsReportsKeysAndAges(t *testing.T) {
	store, clock := newTestStore(10 * time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "b.pdf", "https://blob/b.pdf"))
	clock.Advance(30 * time.Second)
	require.NoError(t, store.Set(ctx, "a.png", "https://blob/a.png"))
	clock.Advance(30 * time.Second)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Count)
	assert.Equal(t, []string{"a.png", "b.pdf"}, stats.Keys)
	assert.Equal(t, 600.0, stats.TTLSeconds)
	assert.InDelta(t, 30, stats.Entries[0].AgeSeconds, 0.001)
	assert.InDelta(t, 60, stats.Entries[1].AgeSeconds, 0.001)

	// Stats must not touch entries.
	_, ok := store.Get(ctx, "b.pdf")
	assert.True(t, ok)
}

func TestMemoryStoreConcurrentAccess(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := []string{"a", "b", "c", "d"}[i%4]
			_ = store.Set(ctx, key, "https://blob/"+key)
			store.Get(ctx, key)
			if i%8 == 0 {
				_ = store.Clear(ctx)
			}
			_, _ = store.Stats(ctx)
		}(i)
	}
	wg.Wait()
}
