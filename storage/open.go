package storage

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
)

// Backend names accepted by Open.
const (
	BackendMemcached = "memcached"
	BackendRedis     = "redis"
	BackendS3        = "s3"
	BackendDisk      = "disk"
	BackendMemory    = "memory"
)

var ErrUnknownBackend = errors.New("unknown storage backend")

// Options holds what Open needs to build any backend. Fields that do not
// apply to the chosen backend are ignored.
type Options struct {
	Backend string
	Servers []string
	Timeout time.Duration
	TTL     time.Duration
	Dir     string
	S3      S3Options
}

// Backends lists the names accepted by Open.
func Backends() []string {
	return []string{BackendMemcached, BackendRedis, BackendS3, BackendDisk, BackendMemory}
}

// Open builds the backend named by opts.Backend. It does not contact the
// backend; use Ping for that.
func Open(ctx context.Context, opts Options) (System, error) {
	switch opts.Backend {
	case BackendMemcached:
		if len(opts.Servers) == 0 {
			return nil, errors.New("memcached needs at least one server")
		}
		return NewMemcachedStorage(opts.Servers, opts.Timeout, opts.TTL), nil
	case BackendRedis:
		if len(opts.Servers) == 0 {
			return nil, errors.New("redis needs at least one server")
		}
		return DialRedis(opts.Servers, opts.Timeout, opts.TTL), nil
	case BackendS3:
		if opts.S3.Bucket == "" {
			return nil, errors.New("s3 needs a bucket")
		}
		s, err := DialS3(ctx, opts.S3)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendDisk:
		if opts.Dir == "" {
			return nil, errors.New("disk needs a directory")
		}
		return NewDiskStorage(opts.Dir), nil
	case BackendMemory:
		return NewMemoryStorage(opts.TTL), nil
	default:
		return nil, errors.Wrapf(ErrUnknownBackend, "%q", opts.Backend)
	}
}
