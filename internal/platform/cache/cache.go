// Package cache provides a Redis read-through cache for hot reference data.
// A Cache built without a URL is disabled: every Get misses and writes are
// no-ops, so callers need no separate code path.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned by Get when the key is absent or the cache is disabled.
var ErrMiss = redis.Nil

type Config struct {
	URL       string
	KeyPrefix string
	TTL       time.Duration
}

type Cache struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

func New(ctx context.Context, cfg Config) (*Cache, error) {
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "itrust"
	}
	c := &Cache{keyPrefix: prefix, ttl: cfg.TTL}
	if cfg.URL == "" {
		return c, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	c.client = client
	return c, nil
}

// Disabled returns a cache that never stores anything.
func Disabled() *Cache {
	return &Cache{keyPrefix: "itrust"}
}

func (c *Cache) Enabled() bool { return c.client != nil }

func (c *Cache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

func (c *Cache) key(parts ...string) string {
	return c.keyPrefix + ":" + strings.Join(parts, ":")
}

func (c *Cache) Get(ctx context.Context, key string, dest interface{}) error {
	if c.client == nil {
		return ErrMiss
	}
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// Set stores value under key with the configured TTL.
func (c *Cache) Set(ctx context.Context, key string, value interface{}) error {
	if c.client == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(key), data, c.ttl).Err()
}

func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if c.client == nil || len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.key(k)
	}
	return c.client.Del(ctx, full...).Err()
}

// IsMiss reports whether err only means the value was not cached.
func IsMiss(err error) bool {
	return errors.Is(err, ErrMiss)
}

// Ping checks the Redis connection. A disabled cache is always healthy.
func (c *Cache) Ping(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	return c.client.Ping(ctx).Err()
}
