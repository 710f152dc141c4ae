package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
)

// liveEventsChannel carries serialized live events between process
// instances so every instance can push to its own connected users.
const liveEventsChannel = "auction.live"

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

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// SetLowestBid caches an auction's current lowest bid amount. The cache is
// advisory; finalize never trusts it.
func (c *Client) SetLowestBid(ctx context.Context, auctionID string, amount decimal.Decimal, ttl time.Duration) error {
	key := fmt.Sprintf("auction:%s:lowest", auctionID)
	return c.rdb.Set(ctx, key, amount.String(), ttl).Err()
}

// GetLowestBid returns the cached lowest bid for an auction. The bool is
// false on cache miss.
func (c *Client) GetLowestBid(ctx context.Context, auctionID string) (decimal.Decimal, bool, error) {
	key := fmt.Sprintf("auction:%s:lowest", auctionID)
	val, err := c.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, err
	}
	amount, err := decimal.NewFromString(val)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("corrupt lowest-bid cache entry: %w", err)
	}
	return amount, true, nil
}

// InvalidateLowestBid drops the cached lowest bid for an auction
func (c *Client) InvalidateLowestBid(ctx context.Context, auctionID string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("auction:%s:lowest", auctionID)).Err()
}

// AcquireLock acquires a distributed lock
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), "1", ttl).Result()
}

// ReleaseLock releases a distributed lock
func (c *Client) ReleaseLock(ctx context.Context, lockKey string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("lock:%s", lockKey)).Err()
}

// PublishLiveEvent broadcasts a serialized live event to all service
// instances
func (c *Client) PublishLiveEvent(ctx context.Context, payload []byte) error {
	return c.rdb.Publish(ctx, liveEventsChannel, payload).Err()
}

// SubscribeLiveEvents subscribes to the live event channel
func (c *Client) SubscribeLiveEvents(ctx context.Context) *redis.PubSub {
	return c.rdb.Subscribe(ctx, liveEventsChannel)
}
