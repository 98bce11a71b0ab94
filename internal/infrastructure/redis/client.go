package redis

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const pingTimeout = 2 * time.Second

// Client owns the connection shared by the session store, the oauth state
// store and the rate limiter.
type Client struct {
	rdb *goredis.Client
}

func New(addr, password string, db int) *Client {
	return &Client{
		rdb: goredis.NewClient(&goredis.Options{
			Addr:         addr,
			Password:     password,
			DB:           db,
			DialTimeout:  pingTimeout,
			ReadTimeout:  time.Second,
			WriteTimeout: time.Second,
			// every gated request reads a session
			MinIdleConns: 2,
		}),
	}
}

func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return c.rdb.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.rdb.Close()
}
