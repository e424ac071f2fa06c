package blobcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// DefaultKeyPrefix namespaces cache keys in a shared Redis.
	DefaultKeyPrefix = "mediagate:blob:"

	scanBatch = 200
)

// RedisStore shares resolved URLs between gateway instances. Redis enforces
// the TTL; the stored insertion time is kept for Stats.
type RedisStore struct {
	rdb    redis.Cmdable
	prefix string
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
}

// NewRedisStore wraps an existing client.
func NewRedisStore(rdb redis.Cmdable, prefix string, ttl time.Duration, logger *zap.Logger) *RedisStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{rdb: rdb, prefix: prefix, ttl: ttl, logger: logger, now: time.Now}
}

// Get treats Redis errors as misses so a cache outage degrades to listings.
func (s *RedisStore) Get(ctx context.Context, key string) (string, bool) {
	raw, err := s.rdb.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return "", false
	}
	if err != nil {
		s.logger.Warn("blob cache get failed", zap.String("key", key), zap.Error(err))
		return "", false
	}
	e, err := decodeEntry(raw)
	if err != nil {
		s.logger.Warn("blob cache entry unreadable", zap.String("key", key), zap.Error(err))
		return "", false
	}
	if !fresh(e, s.ttl, s.now()) {
		return "", false
	}
	return e.URL, true
}

func (s *RedisStore) Set(ctx context.Context, key, url string) error {
	payload, err := json.Marshal(Entry{Key: key, URL: url, InsertedAt: s.now()})
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	if err := s.rdb.Set(ctx, s.prefix+key, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("set cache entry: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("delete cache entry: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	keys, err := s.scanKeys(ctx)
	if err != nil {
		return err
	}
	for start := 0; start < len(keys); start += scanBatch {
		end := min(start+scanBatch, len(keys))
		if err := s.rdb.Del(ctx, keys[start:end]...).Err(); err != nil {
			return fmt.Errorf("clear cache entries: %w", err)
		}
	}
	return nil
}

func (s *RedisStore) Stats(ctx context.Context) (Stats, error) {
	keys, err := s.scanKeys(ctx)
	if err != nil {
		return Stats{}, err
	}
	sort.Strings(keys)

	stats := Stats{
		Keys:       make([]string, 0, len(keys)),
		Entries:    make([]EntryStat, 0, len(keys)),
		TTLSeconds: s.ttl.Seconds(),
	}
	if len(keys) == 0 {
		return stats, nil
	}

	values, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return Stats{}, fmt.Errorf("read cache entries: %w", err)
	}

	now := s.now()
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// expired between SCAN and MGET
			continue
		}
		e, err := decodeEntry([]byte(raw))
		if err != nil {
			continue
		}
		name := keys[i][len(s.prefix):]
		stats.Keys = append(stats.Keys, name)
		stats.Entries = append(stats.Entries, EntryStat{
			Key:        name,
			AgeSeconds: now.Sub(e.InsertedAt).Seconds(),
			Expired:    !fresh(e, s.ttl, now),
		})
	}
	stats.Count = len(stats.Keys)
	return stats, nil
}

func (s *RedisStore) scanKeys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := s.rdb.Scan(ctx, 0, s.prefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan cache keys: %w", err)
	}
	return keys, nil
}

func decodeEntry(raw []byte) (Entry, error) {
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return Entry{}, err
	}
	if e.URL == "" {
		return Entry{}, errors.New("entry has no url")
	}
	return e, nil
}
