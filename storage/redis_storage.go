package storage

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
)

type redisStorage struct {
	Client redis.UniversalClient
	TTL    time.Duration
}

// NewRedisStorage wraps an existing client. A zero ttl stores keys without expiry.
func NewRedisStorage(client redis.UniversalClient, ttl time.Duration) *redisStorage {
	return &redisStorage{Client: client, TTL: ttl}
}

// DialRedis builds a client for one address, a cluster or a sentinel set,
// depending on the addresses given.
func DialRedis(addrs []string, timeout time.Duration, ttl time.Duration) *redisStorage {
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:        addrs,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	})
	return NewRedisStorage(client, ttl)
}

func (r *redisStorage) Write(ctx context.Context, key string, data []byte) error {
	if err := r.Client.Set(ctx, key, data, r.TTL).Err(); err != nil {
		return errors.Wrapf(err, "redis set %s", key)
	}
	return nil
}

func (r *redisStorage) Add(ctx context.Context, key string, data []byte) error {
	ok, err := r.Client.SetNX(ctx, key, data, r.TTL).Result()
	if err != nil {
		return errors.Wrapf(err, "redis setnx %s", key)
	}
	if !ok {
		return ErrExists
	}
	return nil
}

func (r *redisStorage) Read(ctx context.Context, key string) ([]byte, error) {
	data, err := r.Client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrDoesNotExist
	}
	if err != nil {
		return nil, errors.Wrapf(err, "redis get %s", key)
	}
	return data, nil
}

func (r *redisStorage) Delete(ctx context.Context, key string) error {
	if err := r.Client.Del(ctx, key).Err(); err != nil {
		return errors.Wrapf(err, "redis del %s", key)
	}
	return nil
}

func (r *redisStorage) Ping(ctx context.Context) error {
	return errors.Wrap(r.Client.Ping(ctx).Err(), "redis ping")
}

func (r *redisStorage) Close() error {
	return r.Client.Close()
}
