package idempotency

import (
	"bytes"
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
)

var pending = []byte("pending")

func isPending(data []byte) bool {
	return bytes.Equal(data, pending)
}

// Redis stores keys in redis with SETNX so that concurrent API instances
// agree on the owner of a key.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func (r *Redis) Begin(ctx context.Context, key string) (*Response, error) {
	// A completed key may expire between SETNX and GET; one retry covers it.
	for range 2 {
		claimed, err := r.client.SetNX(ctx, key, pending, r.ttl).Result()
		if err != nil {
			return nil, errors.Wrap(err, "claim key")
		}
		if claimed {
			return nil, nil
		}

		data, err := r.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, errors.Wrap(err, "get key")
		}
		if isPending(data) {
			return nil, ErrInProgress
		}
		return decode(data)
	}
	return nil, ErrInProgress
}

func (r *Redis) Complete(ctx context.Context, key string, resp Response) error {
	if err := r.client.Set(ctx, key, encode(resp), r.ttl).Err(); err != nil {
		return errors.Wrap(err, "store response")
	}
	return nil
}

func (r *Redis) Release(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return errors.Wrap(err, "release key")
	}
	return nil
}

// Ping checks redis connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}
