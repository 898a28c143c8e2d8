// Package redisclient owns the Redis connection behind the mail outbox.
package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/geocoder89/bienesraices/internal/config"
	"github.com/geocoder89/bienesraices/internal/queue/outbox"
	"github.com/redis/go-redis/v9"
)

const ioTimeout = 2 * time.Second

type Client struct {
	rdb  *redis.Client
	addr string
}

// New builds a lazily connected client from REDIS_* settings.
func New(cfg config.Config) *Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  ioTimeout,
		ReadTimeout:  ioTimeout,
		WriteTimeout: ioTimeout,
	})

	return &Client{rdb: rdb, addr: cfg.RedisAddr}
}

// Open is New followed by a PING bounded by timeout. The client is closed
// when redis does not answer.
func Open(ctx context.Context, cfg config.Config, timeout time.Duration) (*Client, error) {
	c := New(cfg)

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := c.Ping(pingCtx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis %s: %w", c.addr, err)
	}

	return c, nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Outbox returns the mail outbox stored on this connection.
func (c *Client) Outbox() *outbox.Outbox {
	return outbox.New(c.rdb)
}

func (c *Client) Close() error {
	return c.rdb.Close()
}
