package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// backends returns the stores to run the shared tests against. Stores that
// need a live server are only included when their env var points at one.
func backends(t *testing.T) []struct {
	name    string
	storage System
} {
	tests := []struct {
		name    string
		storage System
	}{
		{
			name:    "memory",
			storage: NewMemoryStorage(0),
		},
		{
			name:    "disk",
			storage: NewDiskStorage(t.TempDir()),
		},
	}

	if addr := os.Getenv("NTSSEED_TEST_MEMCACHED"); addr != "" {
		tests = append(tests, struct {
			name    string
			storage System
		}{"memcached", NewMemcachedStorage(strings.Split(addr, ","), time.Second, time.Minute)})
	}
	if addr := os.Getenv("NTSSEED_TEST_REDIS"); addr != "" {
		tests = append(tests, struct {
			name    string
			storage System
		}{"redis", DialRedis(strings.Split(addr, ","), time.Second, time.Minute)})
	}
	if endpoint := os.Getenv("NTSSEED_TEST_S3_ENDPOINT"); endpoint != "" {
		s, err := DialS3(context.Background(), S3Options{
			Bucket:    "test",
			Region:    "us-east-1",
			Endpoint:  endpoint,
			AccessKey: "test",
			SecretKey: "test",
		})
		require.NoError(t, err)
		tests = append(tests, struct {
			name    string
			storage System
		}{"s3", s})
	}

	return tests
}

func testKey() string {
	return "/ntsseed-test/" + uuid.NewString()
}

func TestWriteRead(t *testing.T) {
	for _, tt := range backends(t) {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			key := testKey()
			require.NoError(t, Ping(ctx, tt.storage))

			_, err := tt.storage.Read(ctx, key)
			require.ErrorIs(t, err, ErrDoesNotExist)

			require.NoError(t, tt.storage.Write(ctx, key, []byte("first")))
			require.NoError(t, tt.storage.Write(ctx, key, []byte("second")))

			data, err := tt.storage.Read(ctx, key)
			require.NoError(t, err)
			require.Equal(t, []byte("second"), data)

			require.NoError(t, tt.storage.Delete(ctx, key))
			require.NoError(t, tt.storage.Delete(ctx, key))

			_, err = tt.storage.Read(ctx, key)
			require.ErrorIs(t, err, ErrDoesNotExist)
			require.NoError(t, Close(tt.storage))
		})
	}
}

func TestAdd(t *testing.T) {
	for _, tt := range backends(t) {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			key := testKey()
			defer tt.storage.Delete(ctx, key)

			require.NoError(t, tt.storage.Add(ctx, key, []byte("first")))
			require.ErrorIs(t, tt.storage.Add(ctx, key, []byte("second")), ErrExists)

			data, err := tt.storage.Read(ctx, key)
			require.NoError(t, err)
			require.Equal(t, []byte("first"), data)
		})
	}
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, s := range []System{NewMemoryStorage(0), NewDiskStorage(t.TempDir())} {
		require.ErrorIs(t, s.Write(ctx, "/a/1", []byte("x")), context.Canceled)
		require.ErrorIs(t, s.Add(ctx, "/a/1", []byte("x")), context.Canceled)
		_, err := s.Read(ctx, "/a/1")
		require.ErrorIs(t, err, context.Canceled)
	}
}

func TestMemoryStorageCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStorage(0)

	data := []byte("secret")
	require.NoError(t, m.Write(ctx, "k", data))
	data[0] = 'X'

	got, err := m.Read(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("secret"), got)

	got[0] = 'Y'
	again, err := m.Read(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("secret"), again)
	require.Equal(t, []string{"k"}, m.Keys())
}

func TestMemoryStorageTTL(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStorage(20 * time.Millisecond)

	require.NoError(t, m.Write(ctx, "k", []byte("v")))
	require.Eventually(t, func() bool {
		_, err := m.Read(ctx, "k")
		return errors.Is(err, ErrDoesNotExist)
	}, time.Second, 10*time.Millisecond)
}

func TestDiskStorageLayout(t *testing.T) {
	dir := t.TempDir()
	d := NewDiskStorage(dir)

	require.NoError(t, d.Write(context.Background(), "/nts/nts-keys/3600", []byte("v")))

	b, err := os.ReadFile(filepath.Join(dir, "nts", "nts-keys", "3600"))
	require.NoError(t, err)
	require.Equal(t, []byte("v"), b)

	info, err := os.Stat(filepath.Join(dir, "nts", "nts-keys", "3600"))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestDiskStoragePing(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, NewDiskStorage(dir).Ping(context.Background()))
	require.Error(t, NewDiskStorage(filepath.Join(dir, "missing")).Ping(context.Background()))

	file := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(file, nil, 0o600))
	require.Error(t, NewDiskStorage(file).Ping(context.Background()))
}

func TestMemcachedExpiration(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	require.Equal(t, int32(0), expiration(0, now))
	require.Equal(t, int32(1), expiration(10*time.Millisecond, now))
	require.Equal(t, int32(3600), expiration(time.Hour, now))
	require.Equal(t, int32(30*24*3600), expiration(30*24*time.Hour, now))
	require.Equal(t, int32(now.Unix()+31*24*3600), expiration(31*24*time.Hour, now))
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, Options{Backend: BackendMemory})
	require.NoError(t, err)
	require.IsType(t, &memoryStorage{}, s)

	s, err = Open(ctx, Options{Backend: BackendDisk, Dir: t.TempDir()})
	require.NoError(t, err)
	require.IsType(t, &diskStorage{}, s)

	s, err = Open(ctx, Options{Backend: BackendMemcached, Servers: []string{"127.0.0.1:11211"}, Timeout: time.Second})
	require.NoError(t, err)
	require.IsType(t, &memcachedStorage{}, s)
	require.Equal(t, time.Second, s.(*memcachedStorage).Client.Timeout)

	s, err = Open(ctx, Options{Backend: BackendRedis, Servers: []string{"127.0.0.1:6379"}})
	require.NoError(t, err)
	require.IsType(t, &redisStorage{}, s)
	require.NoError(t, Close(s))

	for _, opts := range []Options{
		{Backend: BackendMemcached},
		{Backend: BackendRedis},
		{Backend: BackendS3},
		{Backend: BackendDisk},
	} {
		_, err := Open(ctx, opts)
		require.Error(t, err, opts.Backend)
	}

	_, err = Open(ctx, Options{Backend: "etcd"})
	require.ErrorIs(t, err, ErrUnknownBackend)
	require.Len(t, Backends(), 5)
}
