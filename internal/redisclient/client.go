package redisclient

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

//go:embed scripts/reserve_stock.lua
var reserveStockScript string

//go:embed scripts/restore_stock.lua
var restoreStockScript string

// Key layout and TTLs.
const (
	stockKeyFormat   = "stock:%d"
	cartKeyFormat    = "cart:%s"
	webhookKeyFormat = "webhook:payment:%s"
)

var (
	// CartTTL keeps abandoned guest carts from piling up.
	CartTTL = 14 * 24 * time.Hour
	// WebhookDedupTTL covers the gateway's retry window.
	WebhookDedupTTL = 48 * time.Hour
)

type Client struct {
	rdb           *redis.Client
	reserveScript *redis.Script
	restoreScript *redis.Script
}

// NewClient creates a new Redis client with Lua scripts loaded
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

	return &Client{
		rdb:           rdb,
		reserveScript: redis.NewScript(reserveStockScript),
		restoreScript: redis.NewScript(restoreStockScript),
	}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// ReserveStock atomically decrements the cached stock count. It is a fast
// pre-check mirror of products.stock: the database transaction stays the
// authority. Returns false when the cache says stock is insufficient; a
// missing key counts as success so cold caches never block a checkout.
func (c *Client) ReserveStock(ctx context.Context, productID int64, quantity int) (bool, error) {
	key := fmt.Sprintf(stockKeyFormat, productID)

	result, err := c.reserveScript.Run(ctx, c.rdb, []string{key}, quantity).Result()
	if err != nil {
		return false, fmt.Errorf("reserve stock script failed: %w", err)
	}

	code, ok := result.(int64)
	if !ok {
		return false, fmt.Errorf("unexpected script result type %T", result)
	}
	return code != 0, nil
}

// RestoreStock atomically adds quantity back to the cached stock count.
func (c *Client) RestoreStock(ctx context.Context, productID int64, quantity int) error {
	key := fmt.Sprintf(stockKeyFormat, productID)

	if _, err := c.restoreScript.Run(ctx, c.rdb, []string{key}, quantity).Result(); err != nil {
		return fmt.Errorf("restore stock script failed: %w", err)
	}
	return nil
}

// SetStock seeds or corrects the cached stock count for a product.
func (c *Client) SetStock(ctx context.Context, productID int64, stock int) error {
	return c.rdb.Set(ctx, fmt.Sprintf(stockKeyFormat, productID), stock, 0).Err()
}

// GetStock retrieves the cached stock count for a product.
func (c *Client) GetStock(ctx context.Context, productID int64) (int, error) {
	n, err := c.rdb.Get(ctx, fmt.Sprintf(stockKeyFormat, productID)).Int()
	if err == redis.Nil {
		return 0, fmt.Errorf("stock not cached for product %d", productID)
	}
	return n, err
}

// SaveCart stores a serialized cart under its session key.
func (c *Client) SaveCart(ctx context.Context, sessionID, cartJSON string) error {
	return c.rdb.Set(ctx, fmt.Sprintf(cartKeyFormat, sessionID), cartJSON, CartTTL).Err()
}

// LoadCart retrieves the serialized cart for a session. An unknown session
// returns an empty string.
func (c *Client) LoadCart(ctx context.Context, sessionID string) (string, error) {
	val, err := c.rdb.Get(ctx, fmt.Sprintf(cartKeyFormat, sessionID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	return val, err
}

// DeleteCart drops the session cart.
func (c *Client) DeleteCart(ctx context.Context, sessionID string) error {
	return c.rdb.Del(ctx, fmt.Sprintf(cartKeyFormat, sessionID)).Err()
}

// MarkWebhookSeen is the fast-path duplicate guard for gateway
// notifications. Returns false when the payment ID was already seen within
// the dedup window.
func (c *Client) MarkWebhookSeen(ctx context.Context, paymentID string) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf(webhookKeyFormat, paymentID), "1", WebhookDedupTTL).Result()
}
