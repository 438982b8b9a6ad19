// Package cache is a tiered key/value cache in Redis for non-critical,
// prefetched data such as landing-page content and upstream settings.
// Attempt state never goes through it.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-attempt/internal/config"
	"golang.org/x/sync/singleflight"
)

// Tier selects an entry's lifetime.
type Tier string

const (
	TierShort   Tier = "short"   // 5 minutes
	TierMedium  Tier = "medium"  // 30 minutes
	TierLong    Tier = "long"    // 24 hours
	TierSession Tier = "session" // until ClearSession, bounded by the session TTL
)

const sessionIndexKey = "cache:session_keys"

// Entry is the stored form of a cached value.
type Entry struct {
	Value     json.RawMessage `json:"value"`
	Timestamp int64           `json:"timestamp"` // unix millis
	Tier      Tier            `json:"tier"`
}

// Cache wraps a Redis client with tier expiry and single-flight loading.
type Cache struct {
	rdb        *redis.Client
	sessionTTL time.Duration
	sf         singleflight.Group
	now        func() time.Time
}

// New creates a cache. sessionTTL bounds session-tier entries.
func New(rdb *redis.Client, sessionTTL time.Duration) *Cache {
	return &Cache{rdb: rdb, sessionTTL: sessionTTL, now: time.Now}
}

// TTL returns the lifetime of a tier.
func (c *Cache) TTL(t Tier) time.Duration {
	switch t {
	case TierShort:
		return 5 * time.Minute
	case TierMedium:
		return 30 * time.Minute
	case TierLong:
		return 24 * time.Hour
	default:
		return c.sessionTTL
	}
}

// Set stores value under key for the tier's lifetime.
func (c *Cache) Set(ctx context.Context, key string, value any, tier Tier) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	entry, err := json.Marshal(Entry{Value: raw, Timestamp: c.now().UnixMilli(), Tier: tier})
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}

	rkey := config.CacheKey.CacheEntryKey(key)
	pipe := c.rdb.TxPipeline()
	pipe.Set(ctx, rkey, entry, c.TTL(tier))
	if tier == TierSession {
		pipe.SAdd(ctx, sessionIndexKey, rkey)
		pipe.Expire(ctx, sessionIndexKey, c.sessionTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

// Get decodes the entry for key into dest. It reports false on a miss or
// when the entry outlived its tier.
func (c *Cache) Get(ctx context.Context, key string, dest any) (bool, error) {
	raw, err := c.rdb.Get(ctx, config.CacheKey.CacheEntryKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}

	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return false, nil
	}
	age := c.now().Sub(time.UnixMilli(e.Timestamp))
	if age > c.TTL(e.Tier) {
		return false, nil
	}
	if err := json.Unmarshal(e.Value, dest); err != nil {
		return false, fmt.Errorf("cache decode %s: %w", key, err)
	}
	return true, nil
}

// Delete drops one entry.
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, config.CacheKey.CacheEntryKey(key)).Err()
}

// ClearSession drops every session-tier entry.
func (c *Cache) ClearSession(ctx context.Context) error {
	keys, err := c.rdb.SMembers(ctx, sessionIndexKey).Result()
	if err != nil {
		return fmt.Errorf("cache clear session: %w", err)
	}
	keys = append(keys, sessionIndexKey)
	return c.rdb.Del(ctx, keys...).Err()
}

// GetOrLoad returns the cached value for key, or calls load once across
// concurrent callers and caches its result. Redis failures fall through to
// load.
func GetOrLoad[T any](ctx context.Context, c *Cache, key string, tier Tier, load func(context.Context) (T, error)) (T, error) {
	var out T
	if ok, err := c.Get(ctx, key, &out); err == nil && ok {
		return out, nil
	}

	// The shared load must not die with whichever caller started it.
	loadCtx := context.WithoutCancel(ctx)
	v, err, _ := c.sf.Do(key, func() (interface{}, error) {
		var again T
		if ok, err := c.Get(loadCtx, key, &again); err == nil && ok {
			return again, nil
		}
		fresh, err := load(loadCtx)
		if err != nil {
			return fresh, err
		}
		_ = c.Set(loadCtx, key, fresh, tier)
		return fresh, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}
