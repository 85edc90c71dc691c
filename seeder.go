package ntsseed

import (
	"context"
	"crypto/rand"
	"io"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/cenkalti/backoff/v5"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/hoyle1974/ntsseed/misc"
	"github.com/hoyle1974/ntsseed/storage"
	"github.com/hoyle1974/ntsseed/telemetry"
)

var (
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrEntropy means the random source could not provide distinct secrets.
	// Nothing is written when it is returned.
	ErrEntropy = errors.New("random source failed")
	// ErrUnavailable means the storage could not be reached or refused every key.
	ErrUnavailable = errors.New("storage unavailable")
)

// Mode selects how Fill treats keys that already hold a value.
type Mode string

const (
	// ModeOverwrite replaces every key with a fresh secret.
	ModeOverwrite Mode = "overwrite"
	// ModeMissing only creates keys that are absent.
	ModeMissing Mode = "missing"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeOverwrite, ModeMissing:
		return Mode(s), nil
	case "":
		return ModeOverwrite, nil
	}
	return "", errors.Wrapf(ErrInvalidConfig, "unknown mode %q", s)
}

type Options struct {
	Prefix string
	Window Window
	Mode   Mode

	// Concurrency is the number of writes in flight. Values below 2 write
	// keys one after the other.
	Concurrency int
	// WriteTimeout bounds every single storage call when positive.
	WriteTimeout time.Duration
	// ConnectAttempts and ConnectDelay bound how long the storage is pinged
	// before the run is given up.
	ConnectAttempts uint
	ConnectDelay    time.Duration

	// Nil values fall back to the system clock, crypto/rand and no-op telemetry.
	Clock   misc.Clock
	Random  io.Reader
	Logger  telemetry.Logger
	Metrics telemetry.Metrics
}

// Slot is a key the seeder is responsible for.
type Slot struct {
	Bucket Bucket
	Key    string
}

// Seeder writes one random secret per bucket of a window into a storage backend.
type Seeder struct {
	store storage.System
	opts  Options
}

// NewSeeder validates opts and fills in defaults. store may be nil when the
// seeder is only used to Plan.
func NewSeeder(store storage.System, opts Options) (*Seeder, error) {
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	if opts.Window == (Window{}) {
		opts.Window = DefaultWindow()
	}
	if err := opts.Window.Validate(); err != nil {
		return nil, err
	}
	mode, err := ParseMode(string(opts.Mode))
	if err != nil {
		return nil, err
	}
	opts.Mode = mode
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.ConnectAttempts == 0 {
		opts.ConnectAttempts = 1
	}
	if opts.Clock == nil {
		opts.Clock = misc.SystemClock{}
	}
	if opts.Random == nil {
		opts.Random = rand.Reader
	}
	if opts.Logger == nil {
		opts.Logger = telemetry.NOPLogger{}
	}
	if opts.Metrics == nil {
		opts.Metrics = telemetry.NOPMetrics{}
	}

	return &Seeder{store: store, opts: opts}, nil
}

func (s *Seeder) Options() Options {
	return s.opts
}

// Plan lists the keys a run at now is responsible for, in offset order.
func (s *Seeder) Plan(now time.Time) []Slot {
	buckets := s.opts.Window.Buckets(now)
	ret := make([]Slot, len(buckets))
	for i, b := range buckets {
		ret[i] = Slot{Bucket: b, Key: KeyFor(s.opts.Prefix, b.Epoch)}
	}
	return ret
}

func (s *Seeder) newReport() *Report {
	now := s.opts.Clock.Now()
	slots := s.Plan(now)

	report := &Report{
		RunID:    uuid.NewString(),
		Now:      now,
		Span:     s.opts.Window.Span(now),
		Outcomes: make([]Outcome, len(slots)),
	}
	for i, slot := range slots {
		report.Outcomes[i] = Outcome{Bucket: slot.Bucket, Key: slot.Key, Status: StatusPending}
	}
	return report
}

// Fill stores a fresh secret under every key of the window around the
// current time. A key that can not be written is recorded in the report and
// does not stop the run. The returned error is set when the run as a whole
// failed: ErrEntropy, ErrUnavailable or a context error. A report is
// returned alongside ErrUnavailable and context errors.
func (s *Seeder) Fill(ctx context.Context) (*Report, error) {
	if s.store == nil {
		return nil, errors.Wrap(ErrInvalidConfig, "no storage configured")
	}
	start := time.Now()
	report := s.newReport()
	logger := telemetry.With(s.opts.Logger, "run_id", report.RunID)

	logger.Info("seeding keys",
		"keys", len(report.Outcomes),
		"from", report.Span.Min,
		"to", report.Span.Max,
		"mode", string(s.opts.Mode),
	)

	secrets, err := s.drawSecrets(len(report.Outcomes))
	if err != nil {
		logger.Error("can not generate secrets", err)
		return nil, err
	}

	if err := s.ping(ctx, logger); err != nil {
		return nil, err
	}

	s.forEach(ctx, report, func(ctx context.Context, o *Outcome, idx int) {
		s.fillOne(ctx, logger, o, secrets[idx])
	})

	return s.finish(ctx, logger, report, start)
}

func (s *Seeder) fillOne(ctx context.Context, logger telemetry.Logger, o *Outcome, secret []byte) {
	var err error
	if s.opts.Mode == ModeMissing {
		err = s.store.Add(ctx, o.Key, secret)
	} else {
		err = s.store.Write(ctx, o.Key, secret)
	}

	switch {
	case err == nil:
		o.Status = StatusWritten
		logger.Debug("key written", "key", o.Key, "key_id", o.Bucket.KeyID())
	case errors.Is(err, storage.ErrExists):
		o.Status = StatusExists
		logger.Debug("key exists", "key", o.Key, "key_id", o.Bucket.KeyID())
	default:
		o.Status = StatusFailed
		o.Err = err
		logger.Error("can not write key", err, "key", o.Key)
	}
}

// Verify reads back every key of the window around the current time. Keys
// that are absent or do not hold a SecretSize value are reported as
// StatusMissing or StatusInvalid.
func (s *Seeder) Verify(ctx context.Context) (*Report, error) {
	if s.store == nil {
		return nil, errors.Wrap(ErrInvalidConfig, "no storage configured")
	}
	start := time.Now()
	report := s.newReport()
	logger := telemetry.With(s.opts.Logger, "run_id", report.RunID)

	logger.Info("verifying keys",
		"keys", len(report.Outcomes),
		"from", report.Span.Min,
		"to", report.Span.Max,
	)

	if err := s.ping(ctx, logger); err != nil {
		return nil, err
	}

	s.forEach(ctx, report, func(ctx context.Context, o *Outcome, _ int) {
		s.verifyOne(ctx, logger, o)
	})

	return s.finish(ctx, logger, report, start)
}

func (s *Seeder) verifyOne(ctx context.Context, logger telemetry.Logger, o *Outcome) {
	data, err := s.store.Read(ctx, o.Key)
	switch {
	case errors.Is(err, storage.ErrDoesNotExist):
		o.Status = StatusMissing
		o.Err = err
		logger.Error("key missing", err, "key", o.Key, "key_id", o.Bucket.KeyID())
	case err != nil:
		o.Status = StatusFailed
		o.Err = err
		logger.Error("can not read key", err, "key", o.Key)
	case len(data) != SecretSize:
		o.Status = StatusInvalid
		o.Err = errors.Newf("value is %d bytes, expected %d", len(data), SecretSize)
		logger.Error("key invalid", o.Err, "key", o.Key, "key_id", o.Bucket.KeyID())
	default:
		o.Status = StatusPresent
		logger.Debug("key present", "key", o.Key, "key_id", o.Bucket.KeyID())
	}
}

// forEach runs fn for every outcome, on a worker pool when Concurrency > 1.
// Each call gets its own timeout; outcomes whose turn comes after ctx is done
// are marked failed without touching the storage.
func (s *Seeder) forEach(ctx context.Context, report *Report, fn func(ctx context.Context, o *Outcome, idx int)) {
	run := func(idx int) {
		o := &report.Outcomes[idx]
		if err := ctx.Err(); err != nil {
			o.Status = StatusFailed
			o.Err = err
			return
		}
		callCtx, cancel := s.callContext(ctx)
		defer cancel()
		fn(callCtx, o, idx)
	}

	if s.opts.Concurrency <= 1 {
		for idx := range report.Outcomes {
			run(idx)
		}
		return
	}

	pool := pond.NewPool(s.opts.Concurrency)
	for idx := range report.Outcomes {
		pool.Submit(func() { run(idx) })
	}
	pool.StopAndWait()
}

func (s *Seeder) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.WriteTimeout > 0 {
		return context.WithTimeout(ctx, s.opts.WriteTimeout)
	}
	return context.WithCancel(ctx)
}

// drawSecrets reads every secret of the run before anything is written, so a
// failing source never leaves a partially seeded window behind.
func (s *Seeder) drawSecrets(n int) ([][]byte, error) {
	seen := make(map[[SecretSize]byte]struct{}, n)
	ret := make([][]byte, n)
	for i := range ret {
		var b [SecretSize]byte
		if _, err := io.ReadFull(s.opts.Random, b[:]); err != nil {
			return nil, errors.Mark(errors.Wrap(err, "can not read random bytes"), ErrEntropy)
		}
		if _, ok := seen[b]; ok {
			return nil, errors.Wrap(ErrEntropy, "random source repeated a secret")
		}
		seen[b] = struct{}{}
		ret[i] = b[:]
	}
	return ret, nil
}

func (s *Seeder) ping(ctx context.Context, logger telemetry.Logger) error {
	attempts := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempts++
		callCtx, cancel := s.callContext(ctx)
		defer cancel()

		err := storage.Ping(callCtx, s.store)
		if err != nil {
			logger.Error("storage not reachable", err, "attempt", attempts, "max_attempts", s.opts.ConnectAttempts)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(s.opts.ConnectDelay)),
		backoff.WithMaxTries(s.opts.ConnectAttempts),
	)
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "storage not reachable after %d attempts", attempts), ErrUnavailable)
	}
	return nil
}

func (s *Seeder) finish(ctx context.Context, logger telemetry.Logger, report *Report, start time.Time) (*Report, error) {
	report.Elapsed = time.Since(start)
	s.record(report)

	logger.Info("run finished",
		"keys", len(report.Outcomes),
		"written", report.Count(StatusWritten),
		"exists", report.Count(StatusExists),
		"present", report.Count(StatusPresent),
		"missing", report.Count(StatusMissing),
		"invalid", report.Count(StatusInvalid),
		"failed", report.Count(StatusFailed),
		"elapsed", report.Elapsed,
	)

	if err := ctx.Err(); err != nil {
		return report, errors.Wrap(err, "run interrupted")
	}
	if len(report.Outcomes) > 0 && report.Count(StatusFailed) == len(report.Outcomes) {
		return report, errors.Wrap(ErrUnavailable, "every key failed")
	}
	return report, nil
}

func (s *Seeder) record(report *Report) {
	m := s.opts.Metrics
	m.AddCount(telemetry.KeysWritten, int64(report.Count(StatusWritten)))
	m.AddCount(telemetry.KeysExisting, int64(report.Count(StatusExists)))
	m.AddCount(telemetry.KeysPresent, int64(report.Count(StatusPresent)))
	m.AddCount(telemetry.KeysMissing, int64(report.Count(StatusMissing)))
	m.AddCount(telemetry.KeysInvalid, int64(report.Count(StatusInvalid)))
	m.AddCount(telemetry.KeysFailed, int64(report.Count(StatusFailed)))
	m.SetGauge(telemetry.LastRunTimestamp, float64(report.Now.Unix()))
	m.SetGauge(telemetry.LastRunDuration, report.Elapsed.Seconds())

	success := 0.0
	if report.OK() {
		success = 1
	}
	m.SetGauge(telemetry.LastRunSuccessful, success)
}
