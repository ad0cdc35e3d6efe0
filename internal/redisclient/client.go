package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// permalinkEntry is the stored permalink cache value.
type permalinkEntry struct {
	Permalink   string    `json:"permalink"`
	RefreshedAt time.Time `json:"refreshed_at"`
}

// SetPermalink writes through one resolved permalink, insert-or-update
// with a refresh timestamp.
func (c *Client) SetPermalink(ctx context.Context, itemID, permalink string) error {
	entry, err := json.Marshal(permalinkEntry{
		Permalink:   permalink,
		RefreshedAt: time.Now(),
	})
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, fmt.Sprintf("permalink:%s", itemID), entry, 0).Err()
}

// GetPermalink retrieves a cached permalink; empty string on miss.
func (c *Client) GetPermalink(ctx context.Context, itemID string) (string, error) {
	raw, err := c.rdb.Get(ctx, fmt.Sprintf("permalink:%s", itemID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	var entry permalinkEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return "", err
	}
	return entry.Permalink, nil
}

// AcquireLock acquires a per-key advisory lock. Two callers resolving
// the same shipment concurrently would duplicate enrichment work and
// double-seed the ledger; the loser waits for the cache instead.
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), "1", ttl).Result()
}

// ReleaseLock releases a per-key advisory lock.
func (c *Client) ReleaseLock(ctx context.Context, lockKey string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("lock:%s", lockKey)).Err()
}
