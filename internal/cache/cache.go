// Package cache is a Redis-backed cache for encoded search results.
//
// Redis failures degrade to cache misses: the result is computed and
// returned, and the error is logged.
package cache

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// DefaultTTL bounds how long a result stays cached. Keys also change with
// the index generation, so the TTL only reclaims memory.
const DefaultTTL = 10 * time.Minute

const keyPrefix = "bibsearch:search:"

// hashLen is the number of hex digits in a hashed key.
const hashLen = 32

// Options configures a RedisCache. Keys are scoped to Library, so
// invalidating one library leaves the results of others in place.
type Options struct {
	Library  string
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// RedisCache implements search.Cache.
type RedisCache struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
	group  singleflight.Group
	logger *slog.Logger
}

// New connects to Redis and verifies the connection with a PING.
func New(ctx context.Context, opts Options) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisCache{
		rdb:    rdb,
		prefix: libraryPrefix(opts.Library),
		ttl:    ttl,
		logger: slog.Default().With("component", "cache", "library", opts.Library),
	}, nil
}

// GetOrLoad returns the cached value for key or computes and stores it.
// Concurrent misses on one key share a single load.
func (c *RedisCache) GetOrLoad(ctx context.Context, key string, load func(context.Context) ([]byte, error)) ([]byte, bool, error) {
	k := hashKey(c.prefix, key)
	if v, ok := c.get(ctx, k); ok {
		return v, true, nil
	}

	v, err, _ := c.group.Do(k, func() (interface{}, error) {
		if v, ok := c.get(ctx, k); ok {
			return v, nil
		}
		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if err := c.rdb.Set(ctx, k, v, c.ttl).Err(); err != nil {
			c.logger.Warn("cache set failed", "key", k, "error", err)
		}
		return v, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.([]byte), false, nil
}

func (c *RedisCache) get(ctx context.Context, key string) ([]byte, bool) {
	v, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		return v, true
	case errors.Is(err, redis.Nil):
		return nil, false
	default:
		c.logger.Warn("cache get failed", "key", key, "error", err)
		return nil, false
	}
}

// Invalidate deletes the library's cached results and returns how many
// were removed.
func (c *RedisCache) Invalidate(ctx context.Context) (int64, error) {
	var deleted int64
	iter := c.rdb.Scan(ctx, 0, scanPattern(c.prefix), 100).Iterator()
	for iter.Next(ctx) {
		if err := c.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return deleted, fmt.Errorf("delete %s: %w", iter.Val(), err)
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("scan: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

// Close closes the connection pool.
func (c *RedisCache) Close() error {
	return c.rdb.Close()
}

func libraryPrefix(library string) string {
	return keyPrefix + library + ":"
}

// hashKey bounds key length; search keys embed the whole query string.
func hashKey(prefix, key string) string {
	sum := sha256.Sum256([]byte(key))
	return fmt.Sprintf("%s%x", prefix, sum[:hashLen/2])
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

// scanPattern matches exactly the hashed keys under prefix. The fixed
// hash length keeps library "a" from matching keys of library "a:b".
func scanPattern(prefix string) string {
	return globEscaper.Replace(prefix) + strings.Repeat("?", hashLen)
}
