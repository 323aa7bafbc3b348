package xredis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/scanpay-lab/backend/config"
)

// Client is a json object cache on top of redis.
type Client interface {
	Exist(ctx context.Context, key string) (bool, error)
	Del(ctx context.Context, keys ...string) error
	SetObj(ctx context.Context, key string, obj any, ttl time.Duration) error
	GetObj(ctx context.Context, key string, v any) error
}

type client struct {
	rdb *redis.Client
}

// NewClient connects to redis and fails if the server does not answer a ping.
func NewClient(ctx context.Context, cfg config.RedisConfigs) (*client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:            cfg.Addr,
		Password:        cfg.Password,
		DB:              cfg.DB,
		PoolSize:        cfg.PoolSize,
		MaxRetries:      3,
		MinRetryBackoff: 10 * time.Millisecond,
		MaxRetryBackoff: 500 * time.Millisecond,
		DialTimeout:     3 * time.Second,
		ReadTimeout:     2 * time.Second,
		WriteTimeout:    2 * time.Second,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, err
	}

	return &client{rdb: rdb}, nil
}

// IsNil reports whether err means the key does not exist.
func IsNil(err error) bool {
	return errors.Is(err, redis.Nil)
}

func (c *client) Exist(ctx context.Context, key string) (bool, error) {
	n, err := c.rdb.Exists(ctx, key).Result()
	return n > 0, err
}

func (c *client) Del(ctx context.Context, keys ...string) error {
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil && !IsNil(err) {
		return err
	}

	return nil
}

func (c *client) SetObj(ctx context.Context, key string, obj any, ttl time.Duration) error {
	payload, err := json.Marshal(obj)
	if err != nil {
		return err
	}

	return c.rdb.Set(ctx, key, payload, ttl).Err()
}

// GetObj decodes the json value of key into v. A missing key is reported as an
// error satisfying IsNil.
func (c *client) GetObj(ctx context.Context, key string, v any) error {
	payload, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}

	return json.Unmarshal(payload, v)
}
