package ntsseed

import (
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

const (
	DefaultInterval int64 = 3600
	DefaultLower          = -50
	DefaultUpper          = 3
	DefaultPrefix         = "/nts/nts-keys"

	// SecretSize is the length of every seeded value.
	SecretSize = 16
)

// Window is the contiguous range of bucket offsets, relative to the bucket
// holding "now", seeded by one run. Both bounds are inclusive.
type Window struct {
	Interval int64
	Lower    int
	Upper    int
}

func DefaultWindow() Window {
	return Window{Interval: DefaultInterval, Lower: DefaultLower, Upper: DefaultUpper}
}

func (w Window) Validate() error {
	if w.Interval <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "interval must be positive, got %d", w.Interval)
	}
	if w.Lower > w.Upper {
		return errors.Wrapf(ErrInvalidConfig, "lower offset %d is after upper offset %d", w.Lower, w.Upper)
	}
	return nil
}

// Size is the number of buckets in the window.
func (w Window) Size() int {
	return w.Upper - w.Lower + 1
}

// Buckets lists the buckets of the window around now in offset order.
func (w Window) Buckets(now time.Time) []Bucket {
	current := floorDiv(now.Unix(), w.Interval)

	ret := make([]Bucket, 0, w.Size())
	for i := w.Lower; i <= w.Upper; i++ {
		ret = append(ret, Bucket{
			Offset: i,
			Epoch:  (current + int64(i)) * w.Interval,
		})
	}
	return ret
}

// Span is the wall clock range covered by the window around now: from the
// start of the first bucket to the end of the last one.
func (w Window) Span(now time.Time) TimeRange {
	current := floorDiv(now.Unix(), w.Interval)
	return TimeRange{
		Min: time.Unix((current+int64(w.Lower))*w.Interval, 0).UTC(),
		Max: time.Unix((current+int64(w.Upper)+1)*w.Interval, 0).UTC(),
	}
}

// floorDiv rounds towards negative infinity, unlike Go's integer division.
func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// Bucket is one fixed width interval of wall clock time.
type Bucket struct {
	Offset int
	// Epoch is the unix time at which the bucket starts.
	Epoch int64
}

// KeyID is the identifier NTS servers derive from the bucket: the 32 least
// significant bits of its epoch.
func (b Bucket) KeyID() uint32 {
	return uint32(b.Epoch)
}

func (b Bucket) Start() time.Time {
	return time.Unix(b.Epoch, 0).UTC()
}

// KeyFor builds the cache key of a bucket. A trailing "/" on prefix is
// ignored so keys always have a single separator.
func KeyFor(prefix string, epoch int64) string {
	return strings.TrimRight(prefix, "/") + "/" + strconv.FormatInt(epoch, 10)
}

type TimeRange struct {
	Min time.Time
	Max time.Time
}

// Contains reports whether timestamp falls in [Min, Max).
func (t TimeRange) Contains(timestamp time.Time) bool {
	return (timestamp.Equal(t.Min) || timestamp.After(t.Min)) && timestamp.Before(t.Max)
}

func (t TimeRange) Duration() time.Duration {
	return t.Max.Sub(t.Min)
}
