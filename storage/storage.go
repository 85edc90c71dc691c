package storage

import (
	"context"
	"errors"
)

var (
	ErrDoesNotExist = errors.New("does not exist")
	ErrExists       = errors.New("already exists")
)

// System defines the operations the seeder needs from a storage backend
type System interface {
	// Write stores data under key, replacing any previous value
	Write(ctx context.Context, key string, data []byte) error

	// Add stores data under key only if the key is absent, otherwise it returns ErrExists
	Add(ctx context.Context, key string, data []byte) error

	// Read returns the value stored under key or ErrDoesNotExist
	Read(ctx context.Context, key string) ([]byte, error)

	// Delete removes key. Deleting an absent key is not an error
	Delete(ctx context.Context, key string) error
}

// Pinger is implemented by backends that can check their connection before
// any key is written.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ping checks s when it is a Pinger and succeeds otherwise.
func Ping(ctx context.Context, s System) error {
	if p, ok := s.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Close releases s when it holds a connection.
func Close(s System) error {
	if c, ok := s.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
