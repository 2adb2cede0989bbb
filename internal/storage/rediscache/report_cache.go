// Package rediscache provides the shared report cache tier backed by Redis.
package rediscache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"solana-risk-engine/internal/storage"
)

const keyPrefix = "risk:report:"

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration // Default: 24h
}

// ReportCache implements storage.ReportCache using Redis SETNX.
type ReportCache struct {
	client *redis.Client
	ttl    time.Duration
}

// Compile-time interface check.
var _ storage.ReportCache = (*ReportCache)(nil)

// New connects to Redis and verifies the connection.
func New(ctx context.Context, opts Options) (*ReportCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewWithClient(client, opts.TTL), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, ttl time.Duration) *ReportCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ReportCache{client: client, ttl: ttl}
}

// Check reports whether Redis answers. Used as a readiness probe.
func (c *ReportCache) Check(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *ReportCache) Close() error {
	return c.client.Close()
}

func key(mint string, height int64) string {
	return keyPrefix + mint + ":" + strconv.FormatInt(height, 10)
}

// SetIfAbsent stores payload unless an entry for (mint, height) exists.
// The first writer wins across every process sharing the instance.
func (c *ReportCache) SetIfAbsent(ctx context.Context, mint string, height int64, payload []byte) (bool, error) {
	ok, err := c.client.SetNX(ctx, key(mint, height), payload, c.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}

// Get returns the payload for (mint, height). Returns ErrNotFound if absent.
func (c *ReportCache) Get(ctx context.Context, mint string, height int64) ([]byte, error) {
	payload, err := c.client.Get(ctx, key(mint, height)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return payload, nil
}
