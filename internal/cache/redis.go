package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// A cache backed by Redis. Expiry is handled by Redis itself.
type Redis struct {
	client redis.Cmdable
	prefix string
}

// Creates a cache storing entries in Redis, with keys prefixed by `prefix`.
func NewRedis(client redis.Cmdable, prefix string) *Redis {
	return &Redis{
		client: client,
		prefix: prefix,
	}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	return value, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return r.client.Set(ctx, r.prefix+key, value, ttl).Err()
}

func (r *Redis) Invalidate(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.prefix+key).Err()
}
