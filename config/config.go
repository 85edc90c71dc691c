// Package config loads ntsseed settings from NTSSEED_* environment variables
// and command-line flags. Flags win over the environment, which wins over
// the defaults.
package config

import (
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cockroachdb/errors"
	"github.com/hoyle1974/ntsseed"
	"github.com/hoyle1974/ntsseed/storage"
	flag "github.com/spf13/pflag"
)

type Config struct {
	Backend string   `env:"NTSSEED_BACKEND" envDefault:"memcached"`
	Servers []string `env:"NTSSEED_SERVERS" envSeparator:"," envDefault:"localhost:11211"`

	Interval int64  `env:"NTSSEED_INTERVAL" envDefault:"3600"`
	Lower    int    `env:"NTSSEED_LOWER" envDefault:"-50"`
	Upper    int    `env:"NTSSEED_UPPER" envDefault:"3"`
	Prefix   string `env:"NTSSEED_PREFIX" envDefault:"/nts/nts-keys"`
	Mode     string `env:"NTSSEED_MODE" envDefault:"overwrite"`

	TTL             time.Duration `env:"NTSSEED_TTL" envDefault:"0s"`
	Concurrency     int           `env:"NTSSEED_CONCURRENCY" envDefault:"1"`
	WriteTimeout    time.Duration `env:"NTSSEED_WRITE_TIMEOUT" envDefault:"2s"`
	Deadline        time.Duration `env:"NTSSEED_DEADLINE" envDefault:"60s"`
	ConnectAttempts uint          `env:"NTSSEED_CONNECT_ATTEMPTS" envDefault:"5"`
	ConnectDelay    time.Duration `env:"NTSSEED_CONNECT_DELAY" envDefault:"1s"`

	Dir string `env:"NTSSEED_DIR" envDefault:"."`

	S3Bucket    string `env:"NTSSEED_S3_BUCKET"`
	S3Region    string `env:"NTSSEED_S3_REGION" envDefault:"us-east-1"`
	S3Endpoint  string `env:"NTSSEED_S3_ENDPOINT"`
	S3AccessKey string `env:"NTSSEED_S3_ACCESS_KEY"`
	S3SecretKey string `env:"NTSSEED_S3_SECRET_KEY"`

	LogLevel    string `env:"NTSSEED_LOG_LEVEL" envDefault:"info"`
	LogFormat   string `env:"NTSSEED_LOG_FORMAT" envDefault:"console"`
	MetricsFile string `env:"NTSSEED_METRICS_FILE"`

	// Check verifies the window instead of filling it.
	Check bool
	// DryRun prints the keys of the window and exits.
	DryRun bool
}

// ParseEnv fills cfg from environ, or from the process environment when
// environ is nil.
func ParseEnv(cfg *Config, environ map[string]string) error {
	if err := env.ParseWithOptions(cfg, env.Options{Environment: environ}); err != nil {
		return errors.Wrap(err, "parse env")
	}
	return nil
}

// Load reads the environment, then args, and validates the result.
// pflag.ErrHelp is returned as is when help was requested.
func Load(fs *flag.FlagSet, args []string, environ map[string]string) (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg, environ); err != nil {
		return Config{}, err
	}

	fs.StringVarP(&cfg.Backend, "backend", "b", cfg.Backend, "storage backend: "+strings.Join(storage.Backends(), ", "))
	fs.StringSliceVarP(&cfg.Servers, "servers", "s", cfg.Servers, "memcached or redis addresses")
	fs.Int64Var(&cfg.Interval, "interval", cfg.Interval, "bucket width in seconds")
	fs.IntVar(&cfg.Lower, "lower", cfg.Lower, "offset of the oldest bucket to seed")
	fs.IntVar(&cfg.Upper, "upper", cfg.Upper, "offset of the newest bucket to seed")
	fs.StringVarP(&cfg.Prefix, "prefix", "p", cfg.Prefix, "key prefix")
	fs.StringVarP(&cfg.Mode, "mode", "m", cfg.Mode, "overwrite: replace every key, missing: only create absent keys")
	fs.DurationVar(&cfg.TTL, "ttl", cfg.TTL, "expiry of seeded keys, 0 keeps the backend default")
	fs.IntVarP(&cfg.Concurrency, "concurrency", "c", cfg.Concurrency, "number of writes in flight")
	fs.DurationVar(&cfg.WriteTimeout, "write-timeout", cfg.WriteTimeout, "timeout of a single storage call")
	fs.DurationVar(&cfg.Deadline, "deadline", cfg.Deadline, "timeout of the whole run, 0 disables it")
	fs.UintVar(&cfg.ConnectAttempts, "connect-attempts", cfg.ConnectAttempts, "how many times the storage is pinged before giving up")
	fs.DurationVar(&cfg.ConnectDelay, "connect-delay", cfg.ConnectDelay, "delay between pings")
	fs.StringVarP(&cfg.Dir, "dir", "d", cfg.Dir, "base directory of the disk backend")
	fs.StringVar(&cfg.S3Bucket, "s3-bucket", cfg.S3Bucket, "bucket of the s3 backend")
	fs.StringVar(&cfg.S3Region, "s3-region", cfg.S3Region, "region of the s3 backend")
	fs.StringVar(&cfg.S3Endpoint, "s3-endpoint", cfg.S3Endpoint, "endpoint of an s3 compatible store")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "console or json")
	fs.StringVar(&cfg.MetricsFile, "metrics-file", cfg.MetricsFile, "write prometheus metrics to this file after the run")
	fs.BoolVar(&cfg.Check, "check", cfg.Check, "verify that every key of the window exists instead of writing")
	fs.BoolVarP(&cfg.DryRun, "dry-run", "n", cfg.DryRun, "print the keys of the window without contacting the storage")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return Config{}, flag.ErrHelp
		}
		return Config{}, errors.Wrap(err, "parse flags")
	}
	if fs.NArg() > 0 {
		return Config{}, errors.Wrapf(ntsseed.ErrInvalidConfig, "unexpected arguments %q", fs.Args())
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if !slices.Contains(storage.Backends(), c.Backend) {
		return errors.Wrapf(ntsseed.ErrInvalidConfig, "unknown backend %q", c.Backend)
	}
	if err := c.Window().Validate(); err != nil {
		return err
	}
	if _, err := ntsseed.ParseMode(c.Mode); err != nil {
		return err
	}
	if c.Check && c.DryRun {
		return errors.Wrap(ntsseed.ErrInvalidConfig, "--check and --dry-run are exclusive")
	}
	if c.Concurrency < 1 {
		return errors.Wrapf(ntsseed.ErrInvalidConfig, "concurrency must be at least 1, got %d", c.Concurrency)
	}
	if c.TTL < 0 || c.WriteTimeout < 0 || c.Deadline < 0 || c.ConnectDelay < 0 {
		return errors.Wrap(ntsseed.ErrInvalidConfig, "durations must not be negative")
	}
	if c.TTL > 0 && c.TTL < time.Second {
		return errors.Wrapf(ntsseed.ErrInvalidConfig, "ttl %v is below one second", c.TTL)
	}
	return nil
}

func (c Config) Window() ntsseed.Window {
	return ntsseed.Window{Interval: c.Interval, Lower: c.Lower, Upper: c.Upper}
}

func (c Config) StorageOptions() storage.Options {
	return storage.Options{
		Backend: c.Backend,
		Servers: c.Servers,
		Timeout: c.WriteTimeout,
		TTL:     c.TTL,
		Dir:     c.Dir,
		S3: storage.S3Options{
			Bucket:    c.S3Bucket,
			Region:    c.S3Region,
			Endpoint:  c.S3Endpoint,
			AccessKey: c.S3AccessKey,
			SecretKey: c.S3SecretKey,
		},
	}
}
