package storage

import (
	"context"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/cockroachdb/errors"
)

// memcached treats relative expirations above 30 days as absolute unix times.
const maxRelativeExpiration = 30 * 24 * time.Hour

type memcachedStorage struct {
	Client *memcache.Client
	TTL    time.Duration
}

// NewMemcachedStorage talks to one or more memcached servers. Keys are spread
// over the servers by the client's default selector.
func NewMemcachedStorage(servers []string, timeout time.Duration, ttl time.Duration) *memcachedStorage {
	client := memcache.New(servers...)
	if timeout > 0 {
		client.Timeout = timeout
	}
	client.MaxIdleConns = 8
	return &memcachedStorage{Client: client, TTL: ttl}
}

func (m *memcachedStorage) item(key string, data []byte) *memcache.Item {
	return &memcache.Item{Key: key, Value: data, Expiration: expiration(m.TTL, time.Now())}
}

func expiration(ttl time.Duration, now time.Time) int32 {
	if ttl <= 0 {
		return 0
	}
	if ttl > maxRelativeExpiration {
		return int32(now.Add(ttl).Unix())
	}
	secs := int32(ttl / time.Second)
	if secs == 0 {
		secs = 1
	}
	return secs
}

func (m *memcachedStorage) Write(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.Client.Set(m.item(key, data)); err != nil {
		return errors.Wrapf(err, "memcached set %s", key)
	}
	return nil
}

func (m *memcachedStorage) Add(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := m.Client.Add(m.item(key, data))
	if errors.Is(err, memcache.ErrNotStored) {
		return ErrExists
	}
	if err != nil {
		return errors.Wrapf(err, "memcached add %s", key)
	}
	return nil
}

func (m *memcachedStorage) Read(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	item, err := m.Client.Get(key)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil, ErrDoesNotExist
	}
	if err != nil {
		return nil, errors.Wrapf(err, "memcached get %s", key)
	}
	return item.Value, nil
}

func (m *memcachedStorage) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := m.Client.Delete(key)
	if err != nil && !errors.Is(err, memcache.ErrCacheMiss) {
		return errors.Wrapf(err, "memcached delete %s", key)
	}
	return nil
}

// Ping checks that every server answers
func (m *memcachedStorage) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return errors.Wrap(m.Client.Ping(), "memcached ping")
}
