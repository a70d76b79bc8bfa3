package search

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/OneOfOne/xxhash"
	"github.com/redis/go-redis/v9"

	"github.com/zhenghchen/calhacks2025/src/logging"
)

const cachePrefix = "search:"

// CachedSearcher serves repeated queries from Redis. Cache failures are
// logged and never fail a search.
type CachedSearcher struct {
	inner Searcher
	rdb   *redis.Client
	ttl   time.Duration
	log   logging.Logger
}

func NewCachedSearcher(inner Searcher, rdb *redis.Client, ttl time.Duration, log logging.Logger) *CachedSearcher {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &CachedSearcher{inner: inner, rdb: rdb, ttl: ttl, log: logging.OrNop(log)}
}

// CacheKey normalises case and whitespace before hashing.
func CacheKey(query string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	h := xxhash.NewS64(0)
	_, _ = h.Write([]byte(normalized))
	return cachePrefix + strconv.FormatUint(h.Sum64(), 16)
}

func (c *CachedSearcher) Search(ctx context.Context, query string) ([]Result, error) {
	key := CacheKey(query)

	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached []Result
		if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil {
			c.log.Debugf("search: cache hit %s", key)
			return cached, nil
		}
		c.log.Warnf("search: dropping corrupt cache entry %s", key)
	case !errors.Is(err, redis.Nil):
		c.log.Warnf("search: cache read failed: %v", err)
	}

	results, err := c.inner.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []Result{}
	}

	if encoded, err := json.Marshal(results); err == nil {
		if err := c.rdb.Set(ctx, key, encoded, c.ttl).Err(); err != nil {
			c.log.Warnf("search: cache write failed: %v", err)
		}
	}
	return results, nil
}
