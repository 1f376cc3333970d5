// Package cache implements the best-effort recency cache: a Redis pointer
// from (mode, queryKey) to the most recent matching search. Every failure
// on this path is a miss, never an error that blocks the search.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/marcusmcb/revive-hq-demo/internal/model"
)

// Cache wraps the Redis pointer store.
type Cache struct {
	rdb    *redis.Client
	maxAge time.Duration
}

// New creates a Cache against the given Redis address. maxAge is the
// freshness window beyond which a pointer is treated as a miss.
func New(addr string, maxAge time.Duration) *Cache {
	// redis/go-redis/v9: plain client, commands fail fast when Redis is
	// down and every failure here degrades to a cache miss.
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	return &Cache{rdb: rdb, maxAge: maxAge}
}

// pointerKey mirrors the searchCache/{mode}:{queryKey} layout.
func pointerKey(mode model.SearchMode, queryKey string) string {
	return fmt.Sprintf("searchcache:%s:%s", mode, queryKey)
}

// Lookup returns the pointer for (mode, queryKey) when it exists, decodes,
// and is still within the freshness window. Storage failures, malformed
// pointers, blank search ids, and stale timestamps are all logged misses.
func (c *Cache) Lookup(ctx context.Context, mode model.SearchMode, queryKey string) (model.CachePointer, bool) {
	key := pointerKey(mode, queryKey)

	raw, err := c.rdb.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("cache: lookup %s degraded: %v", key, err)
		}
		return model.CachePointer{}, false
	}

	ptr, err := decodePointer(raw)
	if err != nil {
		log.Printf("cache: malformed pointer at %s: %v", key, err)
		return model.CachePointer{}, false
	}
	if !fresh(ptr, time.Now(), c.maxAge) {
		return model.CachePointer{}, false
	}
	return ptr, true
}

// Write overwrites the pointer for (mode, queryKey) unconditionally:
// last-write-wins, no merge of history. Best-effort; failure is logged.
func (c *Cache) Write(ctx context.Context, mode model.SearchMode, queryKey, searchID string) {
	key := pointerKey(mode, queryKey)
	data, err := json.Marshal(model.CachePointer{
		SearchID:  searchID,
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		log.Printf("cache: encode pointer for %s (search %s): %v", key, searchID, err)
		return
	}
	if err := c.rdb.Set(ctx, key, data, 0).Err(); err != nil {
		log.Printf("cache: write %s (search %s) degraded: %v", key, searchID, err)
	}
}

// Invalidate removes the pointer for (mode, queryKey). Used by delete
// cleanup; best-effort, failure is logged and swallowed.
func (c *Cache) Invalidate(ctx context.Context, mode model.SearchMode, queryKey string) {
	key := pointerKey(mode, queryKey)
	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		log.Printf("cache: invalidate %s degraded: %v", key, err)
	}
}

// Ping reports Redis reachability for the health endpoint.
func (c *Cache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close releases the Redis connection.
func (c *Cache) Close() error {
	return c.rdb.Close()
}

func decodePointer(raw string) (model.CachePointer, error) {
	var ptr model.CachePointer
	if err := json.Unmarshal([]byte(raw), &ptr); err != nil {
		return model.CachePointer{}, err
	}
	if ptr.SearchID == "" {
		return model.CachePointer{}, errors.New("pointer has blank searchId")
	}
	if ptr.UpdatedAt.IsZero() {
		return model.CachePointer{}, errors.New("pointer has no timestamp")
	}
	return ptr, nil
}

func fresh(ptr model.CachePointer, now time.Time, maxAge time.Duration) bool {
	return now.Sub(ptr.UpdatedAt) <= maxAge
}
