package ntsseed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultWindowBuckets(t *testing.T) {
	now := time.Unix(1_700_000_123, 0)
	buckets := DefaultWindow().Buckets(now)

	require.Len(t, buckets, 54)

	current := int64(1_700_000_123 / 3600)
	require.Equal(t, (current-50)*3600, buckets[0].Epoch)
	require.Equal(t, (current+3)*3600, buckets[53].Epoch)

	seen := map[int64]bool{}
	for i, b := range buckets {
		require.Equal(t, i-50, b.Offset)
		require.Equal(t, int64(0), b.Epoch%3600)
		require.False(t, seen[b.Epoch], "duplicate epoch %d", b.Epoch)
		seen[b.Epoch] = true
		if i > 0 {
			require.Equal(t, int64(3600), b.Epoch-buckets[i-1].Epoch)
		}
	}
}

func TestWindowOnBoundary(t *testing.T) {
	buckets := DefaultWindow().Buckets(time.Unix(3600*10, 0))

	require.Len(t, buckets, 54)
	require.Equal(t, int64(-144000), buckets[0].Epoch)
	require.Equal(t, int64(36000), buckets[50].Epoch)
	require.Equal(t, int64(46800), buckets[53].Epoch)
}

func TestWindowIgnoresSubSecond(t *testing.T) {
	w := DefaultWindow()
	a := w.Buckets(time.Unix(7199, 999_999_999))
	b := w.Buckets(time.Unix(3600, 0))
	require.Equal(t, a, b)
}

func TestWindowOfOne(t *testing.T) {
	w := Window{Interval: 3600, Lower: 0, Upper: 0}
	require.NoError(t, w.Validate())
	require.Equal(t, 1, w.Size())

	buckets := w.Buckets(time.Unix(1_700_000_123, 0))
	require.Equal(t, []Bucket{{Offset: 0, Epoch: 1_699_999_200}}, buckets)
}

func TestWindowCustomInterval(t *testing.T) {
	w := Window{Interval: 60, Lower: -2, Upper: 1}
	buckets := w.Buckets(time.Unix(125, 0))

	epochs := []int64{}
	for _, b := range buckets {
		epochs = append(epochs, b.Epoch)
	}
	require.Equal(t, []int64{0, 60, 120, 180}, epochs)
}

func TestWindowValidate(t *testing.T) {
	require.NoError(t, DefaultWindow().Validate())
	require.ErrorIs(t, Window{Interval: 0, Lower: -1, Upper: 1}.Validate(), ErrInvalidConfig)
	require.ErrorIs(t, Window{Interval: -5, Lower: -1, Upper: 1}.Validate(), ErrInvalidConfig)
	require.ErrorIs(t, Window{Interval: 3600, Lower: 2, Upper: 1}.Validate(), ErrInvalidConfig)
}

func TestWindowSpan(t *testing.T) {
	now := time.Unix(3600*10+42, 0)
	span := DefaultWindow().Span(now)

	require.Equal(t, time.Unix(-144000, 0).UTC(), span.Min)
	require.Equal(t, time.Unix(50400, 0).UTC(), span.Max)
	require.Equal(t, 54*time.Hour, span.Duration())
	require.True(t, span.Contains(now))
	require.True(t, span.Contains(span.Min))
	require.False(t, span.Contains(span.Max))
}

func TestFloorDiv(t *testing.T) {
	tests := []struct {
		a, b, want int64
	}{
		{0, 3600, 0},
		{3599, 3600, 0},
		{3600, 3600, 1},
		{-1, 3600, -1},
		{-3600, 3600, -1},
		{-3601, 3600, -2},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, floorDiv(tt.a, tt.b), "floorDiv(%d, %d)", tt.a, tt.b)
	}

	buckets := Window{Interval: 3600}.Buckets(time.Unix(-1, 0))
	require.Equal(t, int64(-3600), buckets[0].Epoch)
}

func TestKeyFor(t *testing.T) {
	require.Equal(t, "/nts/nts-keys/3600", KeyFor("/nts/nts-keys", 3600))
	require.Equal(t, "/nts/nts-keys/3600", KeyFor("/nts/nts-keys/", 3600))
	require.Equal(t, "/nts/nts-keys/-144000", KeyFor(DefaultPrefix, -144000))
	require.Equal(t, "/0", KeyFor("/", 0))
}

func TestKeyID(t *testing.T) {
	require.Equal(t, uint32(1_699_999_200), Bucket{Epoch: 1_699_999_200}.KeyID())
	require.Equal(t, uint32(5), Bucket{Epoch: 1<<32 + 5}.KeyID())
	require.Equal(t, uint32(0xffff_f1f0), Bucket{Epoch: -3600}.KeyID())
	require.Equal(t, time.Unix(3600, 0).UTC(), Bucket{Epoch: 3600}.Start())
}
