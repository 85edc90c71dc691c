package storage

import (
	"context"
	"time"

	"github.com/hoyle1974/ntsseed/misc"
	"github.com/patrickmn/go-cache"
)

// memoryStorage keeps values in process. It is what tests and dry runs seed.
type memoryStorage struct {
	_    misc.NoCopy
	ttl  time.Duration
	data *cache.Cache
}

// NewMemoryStorage creates an in-process store. A zero ttl keeps values forever.
func NewMemoryStorage(ttl time.Duration) *memoryStorage {
	cleanup := time.Minute
	if ttl <= 0 {
		ttl = cache.NoExpiration
		cleanup = 0
	}
	return &memoryStorage{ttl: ttl, data: cache.New(ttl, cleanup)}
}

func (m *memoryStorage) Write(ctx context.Context, key string, data []byte) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	m.data.Set(key, misc.CopyBytes(data), cache.DefaultExpiration)

	return nil
}

func (m *memoryStorage) Add(ctx context.Context, key string, data []byte) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if err := m.data.Add(key, misc.CopyBytes(data), cache.DefaultExpiration); err != nil {
		return ErrExists
	}

	return nil
}

// Read returns a copy of the value stored under key
func (m *memoryStorage) Read(ctx context.Context, key string) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	v, ok := m.data.Get(key)
	if !ok {
		return nil, ErrDoesNotExist
	}

	return misc.CopyBytes(v.([]byte)), nil
}

func (m *memoryStorage) Delete(ctx context.Context, key string) error {
	m.data.Delete(key)

	return nil
}

// Keys lists every live key
func (m *memoryStorage) Keys() []string {
	items := m.data.Items()
	ret := make([]string, 0, len(items))
	for k := range items {
		ret = append(ret, k)
	}
	return ret
}
