// Package cache memoizes permission decisions of the access-control gate.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrCacheMiss is returned when no decision is cached.
var ErrCacheMiss = errors.New("cache miss")

const (
	keyPrefix     = "bizdesk:perm:"
	generationKey = keyPrefix + "gen"
)

// PermissionCache stores allow/deny decisions per (user, sector) under a
// generation number. Callers read the generation once and key both Get and
// Set with it, so a decision computed before an Invalidate is never stored
// where later readers look. Invalidate is called on each grant and revoke
// since a global grant affects all users.
type PermissionCache interface {
	Generation(ctx context.Context) (int64, error)
	Get(ctx context.Context, gen, userID int64, sector string) (bool, error)
	Set(ctx context.Context, gen, userID int64, sector string, allowed bool) error
	Invalidate(ctx context.Context) error
}

// RedisPermissionCache keeps decisions under a generation number; bumping
// the generation makes every older key unreachable until it expires.
type RedisPermissionCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisPermissionCache(client *redis.Client, ttl time.Duration) *RedisPermissionCache {
	return &RedisPermissionCache{client: client, ttl: ttl}
}

// Dial connects to Redis and checks the connection. The returned cache owns
// the client; Close releases it.
func Dial(ctx context.Context, addr, password string, db int, ttl time.Duration) (*RedisPermissionCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis error: %w", err)
	}
	return NewRedisPermissionCache(client, ttl), nil
}

func (c *RedisPermissionCache) Close() error {
	return c.client.Close()
}

func (c *RedisPermissionCache) Generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, generationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func decisionKey(gen, userID int64, sector string) string {
	return fmt.Sprintf("%sv%d:%d:%s", keyPrefix, gen, userID, sector)
}

func (c *RedisPermissionCache) Get(ctx context.Context, gen, userID int64, sector string) (bool, error) {
	val, err := c.client.Get(ctx, decisionKey(gen, userID, sector)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, ErrCacheMiss
		}
		return false, err
	}
	return strconv.ParseBool(val)
}

func (c *RedisPermissionCache) Set(ctx context.Context, gen, userID int64, sector string, allowed bool) error {
	return c.client.Set(ctx, decisionKey(gen, userID, sector), strconv.FormatBool(allowed), c.ttl).Err()
}

func (c *RedisPermissionCache) Invalidate(ctx context.Context) error {
	return c.client.Incr(ctx, generationKey).Err()
}

// Nop never caches anything.
type Nop struct{}

func (Nop) Generation(context.Context) (int64, error)               { return 0, nil }
func (Nop) Get(context.Context, int64, int64, string) (bool, error) { return false, ErrCacheMiss }
func (Nop) Set(context.Context, int64, int64, string, bool) error   { return nil }
func (Nop) Invalidate(context.Context) error                        { return nil }
