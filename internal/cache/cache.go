package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client is a thin Redis wrapper used for session revocation. Reads and writes
// fail safe: an unavailable Redis behaves like an empty cache.
type Client struct {
	client    *redis.Client
	namespace string
}

// Option customizes a Client.
type Option func(*Client)

// WithNamespace prefixes every key, so several deployments can share one Redis.
func WithNamespace(ns string) Option {
	return func(c *Client) { c.namespace = ns }
}

// New creates a new Redis client. No connection is made until first use.
func New(addr, password string, db int, opts ...Option) *Client {
	c := &Client{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		namespace: "authcore:",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) key(k string) string {
	return c.namespace + k
}

// Ping reports whether Redis is reachable. Unlike the other methods it does not swallow errors.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errors.New("cache: not configured")
	}
	return c.client.Ping(ctx).Err()
}

// Get returns value or nil if missing or redis unavailable.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	if c == nil || c.client == nil {
		return nil, nil
	}
	res, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		// redis.Nil and connectivity errors both read as a miss
		return nil, nil
	}
	return res, nil
}

// Set stores value with TTL, ignoring redis errors.
func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if c == nil || c.client == nil {
		return nil
	}
	_ = c.client.Set(ctx, c.key(key), value, ttl).Err()
	return nil
}

// Delete removes a key, ignoring redis errors.
func (c *Client) Delete(ctx context.Context, key string) error {
	if c == nil || c.client == nil {
		return nil
	}
	_ = c.client.Del(ctx, c.key(key)).Err()
	return nil
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
